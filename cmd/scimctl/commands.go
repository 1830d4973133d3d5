package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// metricsBackend is the part of the reconciler the commands drive.
type metricsBackend interface {
	UpdateMetrics(ctx context.Context, userRef string, requested []domain.Source) (map[domain.Source]domain.Metrics, error)
	GetMetrics(ctx context.Context, userRef string) (map[domain.Source]*domain.MetricRecord, error)
	DeleteMetrics(ctx context.Context, userRef string) (int64, error)
}

type userLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// env is what a command needs once connected.
type env struct {
	metrics metricsBackend
	users   userLister
	enabled []domain.Source
	close   func()
}

// builder creates the subcommands. open connects lazily so that --help works
// without a database.
type builder struct {
	open func(ctx context.Context) (*env, error)
}

func (b builder) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "scimctl",
		Short:         "Manage scientometric metrics of users",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(b.updateUserMetrics(), b.deleteUserMetrics(), b.showUserMetrics())
	return root
}

// updateUserMetrics returns the "update-user-metrics" subcommand.
func (b builder) updateUserMetrics() *cobra.Command {
	var userIDs, requested []string
	c := &cobra.Command{
		Use:   "update-user-metrics",
		Short: "Refresh the metrics of users",
		Long: "Refresh the metrics of the given users, or of every user when --user-ids is omitted.\n" +
			"Only the requested sources are refreshed; all enabled sources by default.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := b.open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if len(userIDs) == 0 {
				if userIDs, err = e.users.ListIDs(ctx); err != nil {
					return fmt.Errorf("listing users: %w", err)
				}
			}
			sources := domain.ParseSources(requested)
			if len(sources) == 0 {
				sources = e.enabled
			}

			out := cmd.OutOrStdout()
			var failed int
			for i, id := range userIDs {
				results, err := e.metrics.UpdateMetrics(ctx, id, sources)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					fmt.Fprintf(out, "[%d/%d] %s: failed: %v\n", i+1, len(userIDs), id, err)
					continue
				}
				fmt.Fprintf(out, "[%d/%d] %s: %s\n", i+1, len(userIDs), id, summarize(results))
			}

			fmt.Fprintln(out, "Metrics update complete!")
			if failed > 0 {
				return fmt.Errorf("%d of %d users failed", failed, len(userIDs))
			}
			return nil
		},
	}
	c.Flags().StringSliceVar(&userIDs, "user-ids", nil, "users to refresh (repeatable or comma-separated)")
	c.Flags().StringSliceVar(&requested, "requested-sources", nil, "sources to refresh (repeatable or comma-separated)")
	return c
}

// deleteUserMetrics returns the "delete-user-metrics" subcommand.
func (b builder) deleteUserMetrics() *cobra.Command {
	var userID string
	c := &cobra.Command{
		Use:   "delete-user-metrics",
		Short: "Delete every stored metric of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := b.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.metrics.DeleteMetrics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d metric records of %s\n", n, userID)
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user-id", "", "user id or name")
	_ = c.MarkFlagRequired("user-id")
	return c
}

// showUserMetrics returns the "show-user-metrics" subcommand.
func (b builder) showUserMetrics() *cobra.Command {
	var userID string
	c := &cobra.Command{
		Use:   "show-user-metrics",
		Short: "Print the stored metrics of a user as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := b.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			records, err := e.metrics.GetMetrics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	c.Flags().StringVar(&userID, "user-id", "", "user id or name")
	_ = c.MarkFlagRequired("user-id")
	return c
}

// summarize renders refresh results as "source=ok source=error: msg".
func summarize(results map[domain.Source]domain.Metrics) string {
	if len(results) == 0 {
		return "nothing to refresh"
	}
	keys := make([]string, 0, len(results))
	for src := range results {
		keys = append(keys, string(src))
	}
	sort.Strings(keys)

	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		if msg, ok := results[domain.Source(k)].String(domain.MetricError); ok {
			s += fmt.Sprintf("%s=error(%s)", k, msg)
		} else {
			s += k + "=ok"
		}
	}
	return s
}
