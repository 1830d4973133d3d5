// Package repositorytest provides in-memory repositories for tests of the
// packages built on top of internal/repository.
package repositorytest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[string]*domain.User

	// SaveErr, when set, is returned by SavePluginExtras.
	SaveErr error
	// Saves counts successful SavePluginExtras calls.
	Saves int
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{users: make(map[string]*domain.User)}
}

// Add stores a user, deep-copying its extras.
func (u *Users) Add(user domain.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.PluginExtras = deepCopy(user.PluginExtras)
	u.users[user.ID] = &user
}

// Extras returns a copy of the stored extras of userID.
func (u *Users) Extras(userID string) map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[userID]; ok {
		return deepCopy(user.PluginExtras)
	}
	return nil
}

// Get implements repository.UserRepository.
func (u *Users) Get(_ context.Context, idOrName string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if idOrName == "" {
		return nil, domain.NewValidationError("user_id", "user id or name is required")
	}
	if user, ok := u.users[idOrName]; ok {
		return cloneUser(user), nil
	}
	for _, user := range u.users {
		if user.Name == idOrName {
			return cloneUser(user), nil
		}
	}
	return nil, domain.NewNotFoundError("user", idOrName)
}

// SavePluginExtras implements repository.UserRepository.
func (u *Users) SavePluginExtras(_ context.Context, userID string, extras map[string]any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.SaveErr != nil {
		return u.SaveErr
	}
	user, ok := u.users[userID]
	if !ok {
		return domain.NewNotFoundError("user", userID)
	}
	user.PluginExtras = deepCopy(extras)
	user.UpdatedAt = time.Now().UTC()
	u.Saves++
	return nil
}

// Create implements repository.UserRepository.
func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists: %w", user.ID, domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.PluginExtras == nil {
		user.PluginExtras = map[string]any{}
	}
	u.users[user.ID] = cloneUser(user)
	return nil
}

// ListIDs implements repository.UserRepository.
func (u *Users) ListIDs(context.Context) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	ids := make([]string, 0, len(u.users))
	for id := range u.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type metricKey struct {
	userID string
	source domain.Source
}

// Metrics is an in-memory repository.MetricRepository that also implements
// repository.Transactor. Writes inside WithinTx are staged and applied only
// when fn succeeds.
type Metrics struct {
	mu      sync.Mutex
	records map[metricKey]*domain.MetricRecord

	// UpsertErr, when set, is returned by Upsert.
	UpsertErr error
	// Upserts counts successful Upsert calls.
	Upserts int
	// Now overrides the clock.
	Now func() time.Time
}

var (
	_ repository.MetricRepository = (*Metrics)(nil)
	_ repository.Transactor       = (*Metrics)(nil)
)

// NewMetrics creates an empty metric store.
func NewMetrics() *Metrics {
	return &Metrics{records: make(map[metricKey]*domain.MetricRecord)}
}

func (m *Metrics) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// Upsert implements repository.MetricRepository.
func (m *Metrics) Upsert(_ context.Context, p repository.UpsertParams) (*domain.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(p)
}

func (m *Metrics) upsertLocked(p repository.UpsertParams) (*domain.MetricRecord, error) {
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	if p.UserID == "" || p.Source == "" {
		return nil, domain.NewValidationError("user_id", "user id and source are required")
	}
	status := p.Status
	if status == "" {
		status = domain.MetricStatusPending
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}

	now := m.now()
	key := metricKey{p.UserID, p.Source}
	rec, ok := m.records[key]
	if !ok {
		rec = &domain.MetricRecord{ID: uuid.New(), UserID: p.UserID, Source: p.Source, CreatedAt: now}
		m.records[key] = rec
	}
	rec.Metrics = roundTrip(p.Metrics)
	rec.External = domain.ExternalRef{ID: p.External.ID, URL: copyString(p.External.URL)}
	rec.Status = status
	rec.UpdatedAt = now
	m.Upserts++
	return cloneRecord(rec), nil
}

// Get implements repository.MetricRepository.
func (m *Metrics) Get(_ context.Context, userID string, source domain.Source) (*domain.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[metricKey{userID, source}]
	if !ok {
		return nil, domain.NewNotFoundError("metrics", userID+"/"+string(source))
	}
	return cloneRecord(rec), nil
}

// ByUserID implements repository.MetricRepository.
func (m *Metrics) ByUserID(_ context.Context, userID string) ([]*domain.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.MetricRecord, 0)
	for k, rec := range m.records {
		if k.userID == userID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// DeleteByUserID implements repository.MetricRepository.
func (m *Metrics) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.records {
		if k.userID == userID {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

// UpdateStatus implements repository.MetricRepository.
func (m *Metrics) UpdateStatus(_ context.Context, userID string, source domain.Source, status domain.MetricStatus) (*domain.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}
	rec, ok := m.records[metricKey{userID, source}]
	if !ok {
		return nil, domain.NewNotFoundError("metrics", userID+"/"+string(source))
	}
	rec.Status = status
	rec.UpdatedAt = m.now()
	return cloneRecord(rec), nil
}

// WithinTx implements repository.Transactor. fn runs against a staging copy
// that replaces the live records only if fn returns nil.
func (m *Metrics) WithinTx(ctx context.Context, fn func(metrics repository.MetricRepository) error) error {
	m.mu.Lock()
	staged := &Metrics{records: make(map[metricKey]*domain.MetricRecord, len(m.records)), UpsertErr: m.UpsertErr, Now: m.Now}
	for k, rec := range m.records {
		staged.records[k] = cloneRecord(rec)
	}
	m.mu.Unlock()

	if err := fn(staged); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = staged.records
	m.Upserts += staged.Upserts
	return nil
}

// Count returns the number of stored records.
func (m *Metrics) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.PluginExtras = deepCopy(u.PluginExtras)
	return &c
}

func cloneRecord(r *domain.MetricRecord) *domain.MetricRecord {
	c := *r
	c.Metrics = r.Metrics.Clone()
	c.External.URL = copyString(r.External.URL)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// deepCopy copies a JSON-shaped map the way a JSONB round trip would.
func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

// roundTrip mirrors the Postgres store, which hands numbers back as json.Number.
func roundTrip(m domain.Metrics) domain.Metrics {
	out := domain.Metrics{}
	if m == nil {
		return out
	}
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		panic(err)
	}
	return out
}
