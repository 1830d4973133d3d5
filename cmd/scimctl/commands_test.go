package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/domain"
)

type fakeBackend struct {
	updated   map[string][]domain.Source
	failFor   map[string]error
	records   map[domain.Source]*domain.MetricRecord
	deletedID string
}

func (f *fakeBackend) UpdateMetrics(_ context.Context, userRef string, requested []domain.Source) (map[domain.Source]domain.Metrics, error) {
	if err := f.failFor[userRef]; err != nil {
		return nil, err
	}
	if f.updated == nil {
		f.updated = map[string][]domain.Source{}
	}
	f.updated[userRef] = requested
	out := make(map[domain.Source]domain.Metrics, len(requested))
	for _, src := range requested {
		out[src] = domain.Metrics{"h_index": 3}
	}
	return out, nil
}

func (f *fakeBackend) GetMetrics(context.Context, string) (map[domain.Source]*domain.MetricRecord, error) {
	return f.records, nil
}

func (f *fakeBackend) DeleteMetrics(_ context.Context, userRef string) (int64, error) {
	f.deletedID = userRef
	return 2, nil
}

type fakeUsers []string

func (u fakeUsers) ListIDs(context.Context) ([]string, error) { return u, nil }

func run(t *testing.T, backend *fakeBackend, users fakeUsers, args ...string) (string, error) {
	t.Helper()
	closed := false
	b := builder{open: func(context.Context) (*env, error) {
		return &env{
			metrics: backend,
			users:   users,
			enabled: []domain.Source{domain.SourceOpenAlex, domain.SourceSemanticScholar},
			close:   func() { closed = true },
		}, nil
	}}
	cmd := b.root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, closed, "env must be closed")
	}
	return out.String(), err
}

func TestUpdateUserMetrics(t *testing.T) {
	t.Run("defaults to every user and enabled source", func(t *testing.T) {
		backend := &fakeBackend{}
		out, err := run(t, backend, fakeUsers{"u1", "u2"}, "update-user-metrics")
		require.NoError(t, err)

		assert.Len(t, backend.updated, 2)
		assert.Equal(t, []domain.Source{domain.SourceOpenAlex, domain.SourceSemanticScholar}, backend.updated["u1"])
		assert.Contains(t, out, "[1/2] u1: openalex=ok semantic_scholar=ok")
		assert.Contains(t, out, "Metrics update complete!")
	})

	t.Run("explicit users and sources", func(t *testing.T) {
		backend := &fakeBackend{}
		_, err := run(t, backend, fakeUsers{"u1", "u2"},
			"update-user-metrics", "--user-ids", "u2", "--requested-sources", "google_scholar,openalex")
		require.NoError(t, err)

		require.Len(t, backend.updated, 1)
		assert.Equal(t, []domain.Source{domain.SourceGoogleScholar, domain.SourceOpenAlex}, backend.updated["u2"])
	})

	t.Run("failure of one user does not stop the batch", func(t *testing.T) {
		backend := &fakeBackend{failFor: map[string]error{"u1": errors.New("boom")}}
		out, err := run(t, backend, fakeUsers{"u1", "u2"}, "update-user-metrics")
		require.Error(t, err)

		assert.Contains(t, err.Error(), "1 of 2 users failed")
		assert.Contains(t, out, "u1: failed: boom")
		assert.Contains(t, backend.updated, "u2")
		assert.Contains(t, out, "Metrics update complete!")
	})
}

func TestDeleteUserMetrics(t *testing.T) {
	backend := &fakeBackend{}
	out, err := run(t, backend, nil, "delete-user-metrics", "--user-id", "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", backend.deletedID)
	assert.Contains(t, out, "deleted 2 metric records of u9")

	_, err = run(t, backend, nil, "delete-user-metrics")
	assert.Error(t, err, "--user-id is required")
}

func TestShowUserMetrics(t *testing.T) {
	backend := &fakeBackend{records: map[domain.Source]*domain.MetricRecord{
		domain.SourceOpenAlex: {UserID: "u1", Source: domain.SourceOpenAlex, Metrics: domain.Metrics{"h_index": 4}},
	}}
	out, err := run(t, backend, nil, "show-user-metrics", "--user-id", "u1")
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "openalex")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "nothing to refresh", summarize(nil))
	assert.Equal(t, "google_scholar=error(timeout) openalex=ok", summarize(map[domain.Source]domain.Metrics{
		domain.SourceOpenAlex:      {"h_index": 1},
		domain.SourceGoogleScholar: domain.ErrorMetrics(errors.New("timeout")),
	}))
}
