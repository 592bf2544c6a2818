package usecases_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

// --- Mock CacheRepository (in-memory) ---

type mockCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	order   []string

	getErr    error
	upsertErr error
	gets      int
	upserts   int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: map[string]*domain.CacheEntry{}}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockCacheRepo) Upsert(ctx context.Context, e *domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if _, ok := m.entries[e.Key]; !ok {
		m.order = append(m.order, e.Key)
	}
	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

func (m *mockCacheRepo) Stats(ctx context.Context) (*domain.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.CacheStats{ByRadius: map[float64]int{}}
	for _, e := range m.entries {
		stats.ByRadius[e.RadiusMeters]++
		stats.Total++
	}
	return stats, nil
}

func (m *mockCacheRepo) Clear(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := append([]string(nil), m.order...)
	m.entries = map[string]*domain.CacheEntry{}
	m.order = nil
	return keys, nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *mockCacheRepo) Oldest(ctx context.Context, limit, offset int) ([]domain.CacheEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CacheEntry
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, *m.entries[m.order[i]])
	}
	return out, len(m.order), nil
}

func (m *mockCacheRepo) Prune(ctx context.Context, keep int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep >= len(m.order) {
		return nil, nil
	}
	cut := len(m.order) - keep
	removed := append([]string(nil), m.order[:cut]...)
	for _, k := range removed {
		delete(m.entries, k)
	}
	m.order = m.order[cut:]
	return removed, nil
}

// --- Mock HotCache ---

type mockHotCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	getErr  error
}

func newMockHotCache() *mockHotCache {
	return &mockHotCache{data: map[string][]byte{}}
}

func (m *mockHotCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *mockHotCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockHotCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	sort.Strings(m.deleted)
	return nil
}

// --- Mock PolygonEngine ---

type mockEngine struct {
	name    string
	buildFn func(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error)
	calls   atomic.Int32
}

func (m *mockEngine) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockEngine) Build(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
	m.calls.Add(1)
	if m.buildFn != nil {
		return m.buildFn(ctx, req, segments)
	}
	return nil, nil
}

// --- Mock RequestLogger / EventPublisher ---

type mockRequestLogger struct {
	mu    sync.Mutex
	recs  []domain.RequestLog
	logFn func(ctx context.Context, rec domain.RequestLog) error
}

func (m *mockRequestLogger) LogRequest(ctx context.Context, rec domain.RequestLog) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	if m.logFn != nil {
		return m.logFn(ctx, rec)
	}
	return nil
}

func (m *mockRequestLogger) records() []domain.RequestLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RequestLog(nil), m.recs...)
}

type mockPublisher struct {
	published atomic.Int32
	err       error
}

func (m *mockPublisher) PublishPolygon(ctx context.Context, rec domain.RequestLog) error {
	m.published.Add(1)
	return m.err
}
