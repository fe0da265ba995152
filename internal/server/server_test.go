package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStatus struct{ exposure float64 }

func (f fakeStatus) CurrentExposureUSD() float64 { return f.exposure }

type fakeOpps struct {
	list []domain.Opportunity
	err  error
}

func (f fakeOpps) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return f.list, f.err
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReturnsOK(t *testing.T) {
	s := NewServer(Config{Port: 0}, fakeStatus{}, nil, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatus_ReportsExposure(t *testing.T) {
	s := NewServer(Config{Port: 0}, fakeStatus{exposure: 42.5}, nil, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42.5")
}

func TestOpportunities_EmptyWhenProviderNil(t *testing.T) {
	s := NewServer(Config{Port: 0}, fakeStatus{}, nil, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/opportunities")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"opportunities":[]}`, rec.Body.String())
}

func TestOpportunities_ReturnsProviderListOnSuccess(t *testing.T) {
	opps := fakeOpps{list: []domain.Opportunity{{ID: "opp-1"}}}
	s := NewServer(Config{Port: 0}, fakeStatus{}, opps, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/opportunities")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opp-1")
}

func TestOpportunities_PropagatesProviderError(t *testing.T) {
	opps := fakeOpps{err: errors.New("db down")}
	s := NewServer(Config{Port: 0}, fakeStatus{}, opps, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/opportunities")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	s := NewServer(Config{Port: 0}, fakeStatus{}, nil, time.Now(), noopLogger())
	rec := doRequest(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	s := NewServer(Config{Port: 0, CORSOrigins: []string{"https://dashboard.example.com"}}, fakeStatus{}, nil, time.Now(), noopLogger())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RejectsUnlistedOrigin(t *testing.T) {
	s := NewServer(Config{Port: 0, CORSOrigins: []string{"https://dashboard.example.com"}}, fakeStatus{}, nil, time.Now(), noopLogger())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdown_OnUnstartedServerSucceeds(t *testing.T) {
	s := NewServer(Config{Port: 0}, fakeStatus{}, nil, time.Now(), noopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
