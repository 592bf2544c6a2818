package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/geopoly/internal/adapters/http"
	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/core/usecases"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
)

// ---- Mocks ----

type mockCacheRepo struct {
	entries   map[string]*domain.CacheEntry
	order     []string
	statsErr  error
	deleteErr error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: map[string]*domain.CacheEntry{}}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockCacheRepo) Upsert(ctx context.Context, e *domain.CacheEntry) error {
	if _, ok := m.entries[e.Key]; !ok {
		m.order = append(m.order, e.Key)
	}
	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

func (m *mockCacheRepo) Stats(ctx context.Context) (*domain.CacheStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	s := &domain.CacheStats{ByRadius: map[float64]int{}}
	for _, e := range m.entries {
		s.Total++
		s.ByRadius[e.RadiusMeters]++
	}
	return s, nil
}

func (m *mockCacheRepo) Clear(ctx context.Context) ([]string, error) {
	keys := m.order
	m.entries = map[string]*domain.CacheEntry{}
	m.order = nil
	return keys, nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *mockCacheRepo) Oldest(ctx context.Context, limit, offset int) ([]domain.CacheEntry, int, error) {
	var out []domain.CacheEntry
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, *m.entries[m.order[i]])
	}
	return out, len(m.order), nil
}

func (m *mockCacheRepo) Prune(ctx context.Context, keep int) ([]string, error) { return nil, nil }

type mockEngine struct {
	buildFn func(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error)
}

func (m *mockEngine) Name() string { return "mock" }
func (m *mockEngine) Build(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
	return m.buildFn(ctx, req, segments)
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

type fixture struct {
	repo    *mockCacheRepo
	primary *mockEngine
	deps    *handler.Dependencies
}

func newFixture(opts ...func(*fixture)) *fixture {
	f := &fixture{repo: newMockCacheRepo()}
	local := usecases.NewLocalEngine(geospatial.PolarAreaLegacy)
	f.primary = &mockEngine{buildFn: func(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
		return local.Build(ctx, req, segments)
	}}
	for _, o := range opts {
		o(f)
	}

	cache := usecases.NewCacheService(f.repo, nil, usecases.DefaultCacheConfig())
	builder := usecases.NewPolygonBuilder(f.primary, local, usecases.BuilderConfig{Segments: 16})
	f.deps = &handler.Dependencies{
		Polygons: usecases.NewPolygonService(usecases.PolygonConfig{MaxRadius: 50000}, cache, builder, nil, nil),
		Cache:    cache,
		DB:       mockPinger{},
		Version:  "test",
	}
	return f
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

type featureResponse struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox"`
	Geometry struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Center  []float64 `json:"center"`
		Radius  float64   `json:"radius"`
		AreaSqm float64   `json:"area_sqm"`
		Cached  bool      `json:"cached"`
		Source  string    `json:"source"`
	} `json:"properties"`
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---- Basic routes ----

func TestRootAndHealth(t *testing.T) {
	app := setupApp(newFixture().deps)

	for path, want := range map[string]string{"/": "message", "/health": "status"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body[want] == "" {
			t.Errorf("%s: expected %q in body %v", path, want, body)
		}
	}
}

func TestReady(t *testing.T) {
	f := newFixture()
	resp, _ := setupApp(f.deps).Test(httptest.NewRequest("GET", "/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	f.deps.DB = mockPinger{err: errors.New("connection refused")}
	resp, _ = setupApp(f.deps).Test(httptest.NewRequest("GET", "/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 with a failing database, got %d", resp.StatusCode)
	}

	f.deps.DB = mockPinger{}
	f.deps.Hot = mockPinger{err: errors.New("valkey down")}
	resp, _ = setupApp(f.deps).Test(httptest.NewRequest("GET", "/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected hot cache failure to be non-fatal, got %d", resp.StatusCode)
	}
}

// ---- POST /polygon ----

func TestCreatePolygon_ComputedThenCached(t *testing.T) {
	app := setupApp(newFixture().deps)
	body := `{"latitude":55.7558,"longitude":37.6173,"radius":1000}`

	status, raw := postJSON(t, app, "/polygon", body)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}
	var first featureResponse
	if err := json.Unmarshal(raw, &first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "Feature" || first.Geometry.Type != "Polygon" {
		t.Fatalf("unexpected feature %s/%s", first.Type, first.Geometry.Type)
	}
	ring := first.Geometry.Coordinates[0]
	if len(ring) < 4 || ring[0] != ring[len(ring)-1] {
		t.Fatalf("expected a closed ring, got %d points", len(ring))
	}
	if first.Properties.Cached || first.Properties.Source != "engine" {
		t.Errorf("expected computed engine result, got cached=%v source=%s", first.Properties.Cached, first.Properties.Source)
	}
	if first.Properties.Center[0] != 37.6173 || first.Properties.Center[1] != 55.7558 {
		t.Errorf("expected center [lon, lat], got %v", first.Properties.Center)
	}
	if len(first.BBox) != 4 || first.BBox[0] >= 37.6173 || first.BBox[2] <= 37.6173 ||
		first.BBox[1] >= 55.7558 || first.BBox[3] <= 55.7558 {
		t.Errorf("expected bbox around the center, got %v", first.BBox)
	}

	_, raw = postJSON(t, app, "/polygon", body)
	var second featureResponse
	if err := json.Unmarshal(raw, &second); err != nil {
		t.Fatal(err)
	}
	if !second.Properties.Cached || second.Properties.Source != "cache" {
		t.Errorf("expected cached result, got cached=%v source=%s", second.Properties.Cached, second.Properties.Source)
	}
	if second.Properties.AreaSqm != first.Properties.AreaSqm {
		t.Errorf("cached area %v differs from %v", second.Properties.AreaSqm, first.Properties.AreaSqm)
	}
}

func TestCreatePolygon_PrimaryFailureStill200(t *testing.T) {
	f := newFixture(func(f *fixture) {
		f.primary = &mockEngine{buildFn: func(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
			return nil, errors.New("postgis unavailable")
		}}
	})
	status, raw := postJSON(t, setupApp(f.deps), "/polygon", `{"latitude":89.9,"longitude":0,"radius":10000}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}
	var feat featureResponse
	if err := json.Unmarshal(raw, &feat); err != nil {
		t.Fatal(err)
	}
	if feat.Properties.Source != "fallback" {
		t.Errorf("expected fallback source, got %s", feat.Properties.Source)
	}
	if feat.Properties.AreaSqm <= 0 {
		t.Errorf("expected positive area, got %v", feat.Properties.AreaSqm)
	}
}

func TestCreatePolygon_BadRequests(t *testing.T) {
	app := setupApp(newFixture().deps)
	cases := map[string]string{
		"malformed json":   `{"latitude":`,
		"missing radius":   `{"latitude":10,"longitude":10}`,
		"latitude too big": `{"latitude":90.0001,"longitude":0,"radius":100}`,
		"longitude small":  `{"latitude":0,"longitude":-180.0001,"radius":100}`,
		"radius too big":   `{"latitude":0,"longitude":0,"radius":50000.0001}`,
		"zero radius":      `{"latitude":0,"longitude":0,"radius":0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, raw := postJSON(t, app, "/polygon", body)
			if status != 400 {
				t.Fatalf("expected 400, got %d: %s", status, raw)
			}
			var e apiError
			if err := json.Unmarshal(raw, &e); err != nil {
				t.Fatal(err)
			}
			if e.Code != "bad_request" || e.Message == "" {
				t.Errorf("unexpected error body %+v", e)
			}
		})
	}
}

func TestCreatePolygon_BoundaryAccepted(t *testing.T) {
	app := setupApp(newFixture().deps)
	for _, body := range []string{
		`{"latitude":90,"longitude":180,"radius":50000}`,
		`{"latitude":-90,"longitude":-180,"radius":1}`,
		`{"latitude":0,"longitude":0,"radius":1000}`,
	} {
		if status, raw := postJSON(t, app, "/polygon", body); status != 200 {
			t.Errorf("expected 200 for %s, got %d: %s", body, status, raw)
		}
	}
}

// ---- Cache endpoints ----

func seed(f *fixture, keys ...string) {
	for _, k := range keys {
		_ = f.repo.Upsert(context.Background(), &domain.CacheEntry{Key: k, RadiusMeters: 1000, AreaSqm: 1})
	}
}

func TestCacheStats(t *testing.T) {
	f := newFixture()
	seed(f, "a", "b")
	_ = f.repo.Upsert(context.Background(), &domain.CacheEntry{Key: "c", RadiusMeters: 2500.5})

	resp, _ := setupApp(f.deps).Test(httptest.NewRequest("GET", "/cache/stats", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Total int            `json:"total_cached_polygons"`
		Dist  map[string]int `json:"radius_distribution"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 3 || body.Dist["1000"] != 2 || body.Dist["2500.5"] != 1 {
		t.Errorf("unexpected stats %+v", body)
	}
}

func TestCacheStats_StoreError(t *testing.T) {
	f := newFixture()
	f.repo.statsErr = errors.New("relation does not exist")

	resp, _ := setupApp(f.deps).Test(httptest.NewRequest("GET", "/cache/stats", nil), -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var e apiError
	json.NewDecoder(resp.Body).Decode(&e)
	if strings.Contains(e.Message, "relation") {
		t.Errorf("internal error leaked: %q", e.Message)
	}
}

func TestClearCache(t *testing.T) {
	f := newFixture()
	seed(f, "a", "b", "c")

	resp, _ := setupApp(f.deps).Test(httptest.NewRequest("DELETE", "/cache", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Deleted int `json:"deleted_entries"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", body.Deleted)
	}
}

func TestDeleteCacheEntry(t *testing.T) {
	f := newFixture()
	app := setupApp(f.deps)

	if status, raw := postJSON(t, app, "/polygon", `{"latitude":10,"longitude":20,"radius":500}`); status != 200 {
		t.Fatalf("seed polygon: %d %s", status, raw)
	}

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/cache/entry?lat=10&lon=20&radius=500", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Deleted bool   `json:"deleted"`
		Key     string `json:"key"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if !body.Deleted || body.Key != f.deps.Cache.Key(10, 20, 500) {
		t.Errorf("unexpected body %+v", body)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/cache/entry?lat=10&lon=20&radius=500", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/cache/entry?lat=10", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for missing params, got %d", resp.StatusCode)
	}
}

func TestListCacheEntries_Pagination(t *testing.T) {
	f := newFixture()
	seed(f, "a", "b", "c", "d", "e")

	resp, _ := setupApp(f.deps).Test(httptest.NewRequest("GET", "/cache/entries?offset=2&limit=2", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Data       []domain.CacheEntry `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Pagination.Total != 5 || len(body.Data) != 2 || body.Data[0].Key != "c" {
		t.Errorf("unexpected page %+v", body)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `offset=4&limit=2>; rel="next"`) || !strings.Contains(link, `offset=0&limit=2>; rel="prev"`) {
		t.Errorf("unexpected Link header %q", link)
	}
}

// ---- GraphQL ----

func TestGraphQL_PolygonAndStats(t *testing.T) {
	app := setupApp(newFixture().deps)

	status, raw := postJSON(t, app, "/graphql",
		`{"query":"{ polygon(lat: 55.7558, lon: 37.6173, radius: 1000) { area_sqm cached source coordinates } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var poly struct {
		Data struct {
			Polygon struct {
				AreaSqm     float64     `json:"area_sqm"`
				Cached      bool        `json:"cached"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"polygon"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &poly); err != nil {
		t.Fatal(err)
	}
	if len(poly.Errors) > 0 {
		t.Fatalf("graphql errors: %v", poly.Errors)
	}
	if poly.Data.Polygon.AreaSqm <= 0 || len(poly.Data.Polygon.Coordinates) < 4 {
		t.Errorf("unexpected polygon %+v", poly.Data.Polygon)
	}

	_, raw = postJSON(t, app, "/graphql", `{"query":"{ cacheStats { total radius_distribution { radius count } } }"}`)
	var stats struct {
		Data struct {
			CacheStats struct {
				Total int `json:"total"`
			} `json:"cacheStats"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Data.CacheStats.Total != 1 {
		t.Errorf("expected 1 cached polygon, got %d", stats.Data.CacheStats.Total)
	}

	_, raw = postJSON(t, app, "/graphql", `{"query":"mutation { clearCache }"}`)
	if !strings.Contains(string(raw), `"clearCache":1`) {
		t.Errorf("unexpected clearCache response %s", raw)
	}
}

func TestWebSocket_UnavailableWithoutNATS(t *testing.T) {
	resp, _ := setupApp(newFixture().deps).Test(httptest.NewRequest("GET", "/ws", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGraphQL_ErrorsDoNotLeak(t *testing.T) {
	f := newFixture()
	f.repo.statsErr = errors.New("relation does not exist")

	_, raw := postJSON(t, setupApp(f.deps), "/graphql", `{"query":"{ cacheStats { total } }"}`)
	if strings.Contains(string(raw), "relation") {
		t.Errorf("internal error leaked: %s", raw)
	}
	if !strings.Contains(string(raw), "failed to read cache stats") {
		t.Errorf("expected generic error message, got %s", raw)
	}
}

func TestGraphQL_ValidationErrorReturned(t *testing.T) {
	_, raw := postJSON(t, setupApp(newFixture().deps), "/graphql",
		`{"query":"{ polygon(lat: 91, lon: 0, radius: 1000) { area_sqm } }"}`)
	if !strings.Contains(string(raw), "latitude") {
		t.Errorf("expected latitude validation error, got %s", raw)
	}
}

// ---- Middleware ----

func TestCreatePolygon_XCacheHeader(t *testing.T) {
	app := setupApp(newFixture().deps)
	body := `{"latitude":48.8566,"longitude":2.3522,"radius":750}`

	for _, want := range []string{"MISS", "HIT"} {
		req := httptest.NewRequest("POST", "/polygon", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if got := resp.Header.Get("X-Cache"); got != want {
			t.Errorf("expected X-Cache %s, got %q", want, got)
		}
	}
}

func TestCaching_ETagAndCacheControl(t *testing.T) {
	app := setupApp(newFixture().deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache, got %q", cc)
	}
	etag := resp.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak ETag, got %q", etag)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/cache/stats", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store on cache routes, got %q", cc)
	}
}
