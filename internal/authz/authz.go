// Package authz decides which principal may perform which scientometrics
// action. Principals travel in the request context; the HTTP layer derives
// them from bearer tokens and the CLI runs as the system principal.
package authz

import (
	"context"
	"fmt"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionShowUserMetrics   Action = "scientometrics_show_user_metrics"
	ActionUpdateUserMetrics Action = "scientometrics_update_user_metrics"
	ActionDeleteUserMetrics Action = "scientometrics_delete_user_metrics"
	ActionSetMetricStatus   Action = "scientometrics_set_metric_status"
	ActionShowAuthorIDs     Action = "scientometrics_show_author_ids"
	ActionUpdateAuthorIDs   Action = "scientometrics_update_author_ids"
)

// Principal is the caller of an operation.
type Principal struct {
	UserID   string
	Sysadmin bool
}

// SystemPrincipal is used by batch jobs and the CLI.
func SystemPrincipal() Principal {
	return Principal{UserID: "system", Sysadmin: true}
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authorizer checks whether the principal in ctx may perform action on the
// user identified by targetUserID.
type Authorizer interface {
	Authorize(ctx context.Context, action Action, targetUserID string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, action Action, targetUserID string) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, action Action, targetUserID string) error {
	return f(ctx, action, targetUserID)
}

// Policy is the default Authorizer:
//   - reads are open, even without a principal;
//   - author ids may be changed by a sysadmin or the user themself;
//   - every other mutation needs a sysadmin.
//
// A missing principal on a mutation yields domain.ErrUnauthorized, an
// insufficient one domain.ErrForbidden.
type Policy struct{}

var _ Authorizer = Policy{}

// Authorize implements Authorizer.
func (Policy) Authorize(ctx context.Context, action Action, targetUserID string) error {
	switch action {
	case ActionShowUserMetrics, ActionShowAuthorIDs:
		return nil
	}

	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == "" {
		return fmt.Errorf("%s requires an authenticated caller: %w", action, domain.ErrUnauthorized)
	}
	if p.Sysadmin {
		return nil
	}
	if action == ActionUpdateAuthorIDs && targetUserID != "" && p.UserID == targetUserID {
		return nil
	}
	return fmt.Errorf("%s not permitted for %s: %w", action, p.UserID, domain.ErrForbidden)
}
