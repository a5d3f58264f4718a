package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/spotmarket/core/batch"
	"github.com/kilianp07/spotmarket/core/inputs"
	"github.com/kilianp07/spotmarket/core/journal"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/infra/logger"
	"github.com/kilianp07/spotmarket/infra/lpsolver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func twoUnitDoc(demand float64) inputs.Document {
	return inputs.Document{
		Interval: "2020/01/01 12:05:00",
		Units:    []model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "NSW"}},
		VolumeBids: []model.VolumeBid{
			{Unit: "A", Bands: []float64{20, 20, 5}},
			{Unit: "B", Bands: []float64{50, 30, 10}},
		},
		PriceBids: []model.PriceBid{
			{Unit: "A", Bands: []float64{50, 60, 100}},
			{Unit: "B", Bands: []float64{50, 55, 80}},
		},
		Demand: []model.RegionDemand{{Region: "NSW", Demand: demand}},
	}
}

func newServer(t *testing.T, cfg Config) (*Server, journal.Store) {
	t.Helper()
	store, err := journal.NewJSONLStore(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	runner, err := batch.NewRunner(lpsolver.New(0, nil), logger.NopLogger{},
		batch.WithConfig(batch.Config{Workers: 2}), batch.WithJournal(store))
	require.NoError(t, err)
	s, err := NewServer(cfg, runner, store, logger.NopLogger{})
	require.NoError(t, err)
	return s, store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t, Config{})
	w := do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newServer(t, Config{})
	w := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestDispatch(t *testing.T) {
	s, _ := newServer(t, Config{})
	w := do(t, s.Handler(), http.MethodPost, "/api/v1/dispatch", twoUnitDoc(120))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))

	var res model.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.StatusOptimal, res.Status)
	a, _ := res.EnergyDispatch("A")
	b, _ := res.EnergyDispatch("B")
	assert.InDelta(t, 40, a, 1e-5)
	assert.InDelta(t, 80, b, 1e-5)
	p, ok := res.Price("NSW", model.Energy)
	require.True(t, ok)
	assert.InDelta(t, 60, p, 1e-5)
}

func TestDispatch_StatusCodes(t *testing.T) {
	s, _ := newServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/dispatch", twoUnitDoc(1000))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var res model.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.StatusInfeasible, res.Status)
	assert.NotEmpty(t, res.Error)

	bad := twoUnitDoc(100)
	bad.PriceBids[0].Bands = []float64{60, 50, 100}
	w = do(t, h, http.MethodPost, "/api/v1/dispatch", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/dispatch", `{"units": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "INVALID_REQUEST", er.Error.Code)
}

func TestDispatch_BodyLimit(t *testing.T) {
	s, _ := newServer(t, Config{MaxBodyBytes: 16})
	w := do(t, s.Handler(), http.MethodPost, "/api/v1/dispatch", twoUnitDoc(120))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchAndJournal(t *testing.T) {
	s, _ := newServer(t, Config{})
	h := s.Handler()
	docs := []inputs.Document{twoUnitDoc(100), twoUnitDoc(1000)}
	docs[1].Interval = "short"
	w := do(t, h, http.MethodPost, "/api/v1/batch", docs)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Results, 2)

	w = do(t, h, http.MethodGet, "/api/v1/journal?run_id="+rep.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []journal.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)

	w = do(t, h, http.MethodGet, "/api/v1/journal?status=infeasible", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "short", recs[0].Result.Interval)

	w = do(t, h, http.MethodGet, "/api/v1/journal?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/batch", []inputs.Document{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJournalDisabled(t *testing.T) {
	runner, err := batch.NewRunner(lpsolver.New(0, nil), logger.NopLogger{})
	require.NoError(t, err)
	s, err := NewServer(Config{}, runner, nil, logger.NopLogger{})
	require.NoError(t, err)
	w := do(t, s.Handler(), http.MethodGet, "/api/v1/journal", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newServer(t, Config{CORSOrigins: []string{"https://ui.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dispatch", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	s, _ := newServer(t, Config{})
	w := do(t, s.Handler(), http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "NOT_FOUND"))
}

func TestRun_Shutdown(t *testing.T) {
	s, _ := newServer(t, Config{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(model.StatusOptimal))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(model.StatusUnbounded))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(model.StatusError))
}
