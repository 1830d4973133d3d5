// Package scientometrics reconciles the author identifiers users declare with
// the metrics providers report for them.
//
// A refresh runs in two phases. The fetch phase calls each provider in turn;
// a failing provider only affects its own source. The persist phase then
// writes every successful source in a single transaction.
package scientometrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/extras"
	"github.com/helixir/scientometrics-service/internal/observability"
	"github.com/helixir/scientometrics-service/internal/repository"
)

// ExtractorResolver resolves extractor keys. *extractors.Registry implements it.
type ExtractorResolver interface {
	Resolve(key string) (extractors.MetricExtractor, error)
}

// ProfileReader resolves a user reference to the identifiers they declared.
// *extras.Bridge implements it.
type ProfileReader interface {
	Read(ctx context.Context, userRef string) (*extras.Profile, error)
}

// Cache holds the stored records of a user. *cache.MetricsCache implements it.
type Cache interface {
	Get(ctx context.Context, userID string) ([]*domain.MetricRecord, bool, error)
	Set(ctx context.Context, userID string, records []*domain.MetricRecord) error
	Invalidate(ctx context.Context, userID string) error
}

// Deps are the collaborators of a Service. Cache and Metrics are optional.
type Deps struct {
	Profiles   ProfileReader
	Records    repository.MetricRepository
	Transactor repository.Transactor
	Extractors ExtractorResolver
	Authorizer authz.Authorizer
	Cache      Cache
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

// Service is the metrics reconciler.
type Service struct {
	profiles   ProfileReader
	records    repository.MetricRepository
	tx         repository.Transactor
	extractors ExtractorResolver
	authorizer authz.Authorizer
	cache      Cache
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a Service.
func New(d Deps) *Service {
	return &Service{
		profiles:   d.Profiles,
		records:    d.Records,
		tx:         d.Transactor,
		extractors: d.Extractors,
		authorizer: d.Authorizer,
		cache:      d.Cache,
		logger:     d.Logger.With().Str("component", "reconciler").Logger(),
		metrics:    d.Metrics,
	}
}

// fetched is the outcome of a successful extraction awaiting persistence.
type fetched struct {
	source   domain.Source
	authorID string
	metrics  domain.Metrics
}

// UpdateMetrics refreshes the stored metrics of the user identified by
// userRef (id or name).
//
// Only sources the user declared an author id for are refreshed; a non-empty
// requested narrows that set further. The result maps each attempted source
// to the metrics the provider returned, or to {"error": msg} when it failed.
// Sources whose provider has no data for the author are left out.
//
// Provider failures never abort the call. Unknown users and storage errors do.
func (s *Service) UpdateMetrics(ctx context.Context, userRef string, requested []domain.Source) (map[domain.Source]domain.Metrics, error) {
	if err := s.authorizer.Authorize(ctx, authz.ActionUpdateUserMetrics, userRef); err != nil {
		return nil, err
	}
	if userRef == "" {
		return nil, domain.NewValidationError("user_id", "user id is required")
	}

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordRefreshStarted()
	}
	result, err := s.updateMetrics(ctx, userRef, requested)
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordRefreshFailed(time.Since(start).Seconds())
		} else {
			s.metrics.RecordRefreshCompleted(time.Since(start).Seconds())
		}
	}
	return result, err
}

func (s *Service) updateMetrics(ctx context.Context, userRef string, requested []domain.Source) (map[domain.Source]domain.Metrics, error) {
	profile, err := s.profiles.Read(ctx, userRef)
	if err != nil {
		return nil, err
	}
	logger := observability.WithUserContext(
		observability.LoggerFromContext(ctx, s.logger),
		observability.RequestIDFromContext(ctx), profile.UserID,
	)

	targets := effectiveSources(profile.Declared(), requested)
	result := make(map[domain.Source]domain.Metrics, len(targets))
	if len(targets) == 0 {
		logger.Debug().Msg("no author ids to refresh")
		return result, nil
	}

	var ok []fetched
	for _, src := range targets {
		authorID := profile.Identifiers[src]
		m, err := s.extract(ctx, logger, src, authorID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case err != nil:
			result[src] = domain.ErrorMetrics(err)
		case len(m) == 0:
			// nothing to store
		default:
			result[src] = m
			ok = append(ok, fetched{source: src, authorID: authorID, metrics: m})
		}
	}

	if len(ok) > 0 {
		err := s.tx.WithinTx(ctx, func(records repository.MetricRepository) error {
			for _, f := range ok {
				if err := s.persist(ctx, records, profile.UserID, f); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("persisting metrics for %s: %w", profile.UserID, err)
		}
		for _, f := range ok {
			if s.metrics != nil {
				s.metrics.RecordUpsert(string(f.source))
			}
		}
		s.invalidate(ctx, logger, profile.UserID)
	}

	logger.Info().
		Int("attempted", len(targets)).
		Int("stored", len(ok)).
		Msg("metrics refreshed")
	return result, nil
}

// extract runs one extractor and records the outcome.
func (s *Service) extract(ctx context.Context, logger zerolog.Logger, src domain.Source, authorID string) (domain.Metrics, error) {
	logger = observability.WithSourceContext(logger, string(src), authorID)
	start := time.Now()

	m, err := s.runExtractor(ctx, src, authorID)

	outcome := observability.OutcomeOK
	switch {
	case err != nil:
		outcome = observability.OutcomeError
		logger.Warn().Err(err).Msg("metric extraction failed")
	case len(m) == 0:
		outcome = observability.OutcomeEmpty
		logger.Info().Msg("provider has no data for author")
	}
	if s.metrics != nil {
		s.metrics.RecordExtraction(string(src), outcome, time.Since(start).Seconds())
	}
	return m, err
}

func (s *Service) runExtractor(ctx context.Context, src domain.Source, authorID string) (domain.Metrics, error) {
	ex, err := s.extractors.Resolve(src.ExtractorKey())
	if err != nil {
		return nil, err
	}
	m, err := ex.ExtractMetrics(ctx, authorID)
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = domain.NewProviderError(src, err)
		}
		return nil, err
	}
	return m, nil
}

// persist merges f with the stored record and upserts it.
func (s *Service) persist(ctx context.Context, records repository.MetricRepository, userID string, f fetched) error {
	prior, err := records.Get(ctx, userID, f.source)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		prior = nil
	}
	_, err = records.Upsert(ctx, mergeRecord(userID, f, prior))
	return err
}

// mergeRecord builds the record written for f. The stored payload is the
// extracted metrics plus author_id. The external reference prefers what the
// provider reported, then what was stored before, then the raw author id.
// The status of an existing record is kept.
func mergeRecord(userID string, f fetched, prior *domain.MetricRecord) repository.UpsertParams {
	payload := f.metrics.Clone()
	payload[domain.MetricAuthorID] = f.authorID

	ext := domain.ExternalRef{ID: f.authorID}
	status := domain.MetricStatusPending
	if prior != nil {
		if prior.External.ID != "" {
			ext.ID = prior.External.ID
		}
		ext.URL = prior.External.URL
		if prior.Status != "" {
			status = prior.Status
		}
	}
	if id, ok := payload.String(domain.MetricExternalID); ok {
		ext.ID = id
	}
	if u, ok := payload.String(domain.MetricURL); ok {
		ext.URL = &u
	}

	return repository.UpsertParams{
		UserID:   userID,
		Source:   f.source,
		Metrics:  payload,
		External: ext,
		Status:   status,
	}
}

// effectiveSources intersects requested with declared, or returns every
// declared source when requested is empty. The order is stable.
func effectiveSources(declared domain.AuthorIdentifiers, requested []domain.Source) []domain.Source {
	var out []domain.Source
	if len(requested) == 0 {
		for src := range declared {
			out = append(out, src)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	seen := make(map[domain.Source]bool, len(requested))
	for _, src := range requested {
		if _, ok := declared[src]; ok && !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// GetMetrics returns the stored records of a user keyed by source.
// Reads go through the cache when one is configured.
func (s *Service) GetMetrics(ctx context.Context, userRef string) (map[domain.Source]*domain.MetricRecord, error) {
	if err := s.authorizer.Authorize(ctx, authz.ActionShowUserMetrics, userRef); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Read(ctx, userRef)
	if err != nil {
		return nil, err
	}
	logger := observability.LoggerFromContext(ctx, s.logger)

	if s.cache != nil {
		records, hit, err := s.cache.Get(ctx, profile.UserID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", profile.UserID).Msg("metrics cache read failed")
		}
		if s.metrics != nil && err == nil {
			s.metrics.RecordCacheLookup(hit)
		}
		if hit {
			return byKey(records), nil
		}
	}

	records, err := s.records.ByUserID(ctx, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading metrics for %s: %w", profile.UserID, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, profile.UserID, records); err != nil {
			logger.Warn().Err(err).Str("user_id", profile.UserID).Msg("metrics cache write failed")
		}
	}
	return byKey(records), nil
}

// DeleteMetrics removes every stored record of a user and returns how many
// were removed. Records of users no longer known to the profile store can be
// removed by passing their raw id.
func (s *Service) DeleteMetrics(ctx context.Context, userRef string) (int64, error) {
	if err := s.authorizer.Authorize(ctx, authz.ActionDeleteUserMetrics, userRef); err != nil {
		return 0, err
	}
	userID, err := s.resolveUserID(ctx, userRef)
	if err != nil {
		return 0, err
	}

	n, err := s.records.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting metrics for %s: %w", userID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordDeleted(n)
	}
	logger := observability.LoggerFromContext(ctx, s.logger)
	s.invalidate(ctx, logger, userID)
	logger.Info().Str("user_id", userID).Int64("deleted", n).Msg("metrics deleted")
	return n, nil
}

// SetStatus changes the status of one stored record.
func (s *Service) SetStatus(ctx context.Context, userRef string, source domain.Source, status domain.MetricStatus) (*domain.MetricRecord, error) {
	if err := s.authorizer.Authorize(ctx, authz.ActionSetMetricStatus, userRef); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	profile, err := s.profiles.Read(ctx, userRef)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.UpdateStatus(ctx, profile.UserID, source, status)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, observability.LoggerFromContext(ctx, s.logger), profile.UserID)
	return rec, nil
}

func (s *Service) resolveUserID(ctx context.Context, userRef string) (string, error) {
	if userRef == "" {
		return "", domain.NewValidationError("user_id", "user id is required")
	}
	profile, err := s.profiles.Read(ctx, userRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return userRef, nil
		}
		return "", err
	}
	return profile.UserID, nil
}

func (s *Service) invalidate(ctx context.Context, logger zerolog.Logger, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("metrics cache invalidation failed")
	}
}

func byKey(records []*domain.MetricRecord) map[domain.Source]*domain.MetricRecord {
	out := make(map[domain.Source]*domain.MetricRecord, len(records))
	for _, r := range records {
		out[r.Source] = r
	}
	return out
}
