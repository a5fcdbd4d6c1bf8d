package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-sustain/sustain-cli/internal/config"
	"github.com/smart-sustain/sustain-cli/internal/dashboard"
	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/monitoring"
	"github.com/smart-sustain/sustain-cli/internal/observability"
	"github.com/smart-sustain/sustain-cli/internal/provider"
	"github.com/smart-sustain/sustain-cli/internal/resilience"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
	"github.com/smart-sustain/sustain-cli/internal/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memSource map[string][]model.Reading

func (m memSource) LatestReadings(_ context.Context, domain string) ([]model.Reading, error) {
	return m[domain], nil
}

type memSnapshots struct {
	snaps []model.Snapshot
	err   error
}

func (m *memSnapshots) GetSnapshot(_ context.Context, id string) (*model.Snapshot, error) {
	for i := range m.snaps {
		if m.snaps[i].ID == id {
			return &m.snaps[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memSnapshots) ListSnapshots(_ context.Context, limit int) ([]model.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.snaps) {
		return m.snaps[:limit], nil
	}
	return m.snaps, nil
}

func (m *memSnapshots) CountReadings(context.Context) (map[string]int, error) {
	return map[string]int{model.DomainHealth: 2}, nil
}

// testSource scores education 80, employment 40 and leaves the rest empty.
func testSource() memSource {
	return memSource{
		model.DomainEducation: {
			{Metric: "literacy_rate", Value: 80, ObservedAt: now},
		},
		model.DomainEmployment: {
			{Metric: "employment_rate", Value: 40, ObservedAt: now},
		},
	}
}

func newTestServer(t *testing.T, cfg config.ServerConfig, snaps *memSnapshots) *Server {
	t.Helper()
	specs := map[string][]model.MetricSpec{
		model.DomainEducation:  {{Name: "literacy_rate", Min: 0, Max: 100}},
		model.DomainEmployment: {{Name: "employment_rate", Min: 0, Max: 100}},
		model.DomainHealth:     {{Name: "life_expectancy", Min: 40, Max: 90}},
	}
	order := []string{model.DomainEducation, model.DomainEmployment, model.DomainHealth}
	scorer, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)

	dash := dashboard.New(provider.FromSpecs(order, specs, testSource()), scorer,
		dashboard.WithClock(clockwork.NewFakeClockAt(now)),
		dashboard.WithMetrics(observability.NewMetricsForTesting()),
		dashboard.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)

	deps := Deps{
		Dashboard: dash,
		Metrics:   promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	}
	if snaps != nil {
		deps.Snapshots = snaps
		deps.Status = monitoring.NewCollector(snaps, order)
	}
	return New(deps, cfg)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[model.Snapshot](t, rec)
	assert.InDelta(t, 60, snap.Composite, 1e-9)
	require.Len(t, snap.Domains, 3)
	assert.False(t, snap.Domains[2].Available)
	assert.Equal(t, 0.0, snap.Domains[2].Display)
	assert.Equal(t, now, snap.ComputedAt)
}

func TestDomains(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/domains", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]domainInfo](t, rec)
	require.Len(t, got, 3)
	assert.Equal(t, "Education", got[0].Label)
	assert.InDelta(t, 0.2, got[0].Weight, 1e-9)
}

func TestDomainDetail(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/domains/education", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Education", body["label"])
	assert.Equal(t, 80.0, body["score"])

	rec = do(t, s, http.MethodGet, "/api/v1/domains/transport", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/domains/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "no readings available")
}

func TestSnapshots(t *testing.T) {
	snaps := &memSnapshots{snaps: []model.Snapshot{{ID: "b", Composite: 70}, {ID: "a", Composite: 50}}}
	s := newTestServer(t, config.ServerConfig{}, snaps)

	rec := do(t, s, http.MethodGet, "/api/v1/snapshots?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]model.Snapshot](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	rec = do(t, s, http.MethodGet, "/api/v1/snapshots?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/snapshots/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, decode[model.Snapshot](t, rec).Composite)

	rec = do(t, s, http.MethodGet, "/api/v1/snapshots/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshots_EmptyListIsArray(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, &memSnapshots{})
	rec := do(t, s, http.MethodGet, "/api/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSnapshots_StoreError(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, &memSnapshots{err: errors.New("db down")})
	rec := do(t, s, http.MethodGet, "/api/v1/snapshots", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSnapshots_NotConfigured(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/snapshots", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, &memSnapshots{snaps: []model.Snapshot{{ID: "latest"}}})
	rec := do(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[monitoring.Status](t, rec)
	assert.Equal(t, 2, st.TotalReadings)
	require.NotNil(t, st.LatestSnapshot)
	assert.Equal(t, "latest", st.LatestSnapshot.ID)
}

func TestComposite(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)

	tests := []struct {
		name string
		body compositeRequest
		want float64
	}{
		{"renormalizes over present keys", compositeRequest{Scores: map[string]float64{"education": 80}}, 80},
		{"equal weights", compositeRequest{Scores: map[string]float64{"education": 80, "health": 40}}, 60},
		{"override", compositeRequest{
			Scores:  map[string]float64{"a": 80, "b": 40},
			Weights: map[string]float64{"a": 0.5, "b": 0.5},
		}, 60},
		{"no weighted keys", compositeRequest{Scores: map[string]float64{"transport": 99}}, 0},
		{"empty", compositeRequest{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/composite", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[compositeResponse](t, rec)
			assert.InDelta(t, tt.want, resp.Composite, 1e-9)
			assert.Len(t, resp.WeightsHash, 32)
		})
	}
}

func TestComposite_BadRequests(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/composite", compositeRequest{
		Scores:  map[string]float64{"a": 1},
		Weights: map[string]float64{"a": -1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/composite", bytes.NewBufferString(`{"scores":`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNormalize(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	f := func(v float64) *float64 { return &v }

	rec := do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Value: f(180), Min: f(0), Max: f(300), Reverse: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 40, decode[map[string]float64](t, rec)["score"], 1e-9)

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Value: f(450), Min: f(0), Max: f(300)})
	assert.InDelta(t, 150, decode[map[string]float64](t, rec)["score"], 1e-9)

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Value: f(450), Min: f(0), Max: f(300), Clamp: true})
	assert.InDelta(t, 100, decode[map[string]float64](t, rec)["score"], 1e-9)

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Series: []float64{10, 20, 30}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{0, 50, 100}, decode[map[string][]float64](t, rec)["scores"])

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Series: []float64{5, 5}, Low: f(0), High: f(10)})
	assert.Equal(t, []float64{5, 5}, decode[map[string][]float64](t, rec)["scores"])

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Value: f(1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComposite_NonFiniteResult(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/composite", compositeRequest{
		Scores:  map[string]float64{"education": 10, "health": 10},
		Weights: map[string]float64{"education": 1e308, "health": 1e308},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not a finite number")
}

func TestNormalize_NonFiniteResult(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	f := func(v float64) *float64 { return &v }

	rec := do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Value: f(1e308), Min: f(-1.7e308), Max: f(1.7e308)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not finite")

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Series: []float64{-1.7e308, 0, 1.7e308}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not finite")
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"score": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "failed to encode response", decode[map[string]string](t, rec)["error"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimit: 1, RateBurst: 2}, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/domains", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/domains", nil).Code)
	rec := do(t, s, http.MethodGet, "/api/v1/domains", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// /health is outside the limited group.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"https://city.example"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://city.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "https://city.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(8080))
}
