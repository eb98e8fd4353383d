package server

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shapelab/internal/config"
	"shapelab/internal/dataset"
	"shapelab/internal/store"
	"shapelab/internal/trainer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	reg, err := dataset.FromConfig(cfg.Datasets, nil, 0)
	require.NoError(t, err)

	dir := t.TempDir()
	return New(cfg,
		trainer.NewService(reg, cfg.Training),
		store.NewFileStore(dir+"/models"),
		store.NewFileStore(dir+"/saved"))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestTrain(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodPost, "/train", `{"dataset":"synthetic_regression","seed":1,"points":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp trainer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Partials, 3)
	assert.Equal(t, 5, resp.Points)
	assert.Len(t, resp.Partials[0].EditableX, 5)
}

func TestTrain_NonFiniteCSVCells(t *testing.T) {
	var csv strings.Builder
	csv.WriteString("a,y\n")
	for i := range 10 {
		if i%2 == 0 {
			csv.WriteString("Inf,5\n")
			continue
		}
		csv.WriteString(strings.Repeat("1", i) + ",6\n")
	}
	path := filepath.Join(t.TempDir(), "inf.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv.String()), 0644))

	h := newTestServer(t, func(cfg *config.Config) {
		cfg.Datasets = append(cfg.Datasets, config.DatasetConfig{
			ID: "inf", Task: "regression", Source: config.SourceCSV, Path: path, Target: "y",
		})
	}).Handler()
	rec := do(t, h, http.MethodPost, "/train", `{"dataset":"inf","seed":1,"points":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, rec.Body.Bytes())

	var resp trainer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Partials, 1)
	assert.Len(t, resp.Predictions, 8)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"v": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, detail(t, rec), "failed to encode response")
}

func TestTrain_Errors(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/train", `{"dataset":"bike_hourly","seed":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "unsupported dataset")

	rec = do(t, h, http.MethodPost, "/train", `{"dataset":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/train", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefit(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body := `{"dataset":"synthetic_regression","seed":1,"points":3,
		"partials":[{"key":"Weathersituation","editableX":[0,1,2],"editableY":[1,2,3]}],
		"locked":["Weathersituation"],"rounds":5}`
	rec := do(t, h, http.MethodPost, "/refit", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp trainer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Weathersituation"}, resp.EditedFeatures)
	assert.Equal(t, []float64{1, 2, 3}, resp.Partials[2].EditableY)

	rec = do(t, h, http.MethodPost, "/refit", `{"dataset":"synthetic_regression","model":"basic","rounds":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "unsupported operation")
}

func TestSavedModels(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/saved-models", "")
	assert.JSONEq(t, `{"models":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/saved-models", `{"name":"","payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing model name", detail(t, rec))

	rec = do(t, h, http.MethodPost, "/saved-models", `{"name":"edit"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/saved-models", `{"name":"../edit","payload":{"intercept":1.5}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"saved":"edit.json"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/saved-models", "")
	assert.JSONEq(t, `{"models":["edit"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/saved-models/edit.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"intercept":1.5}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/saved-models/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/models/edit", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, detail(t, rec), "model not found")
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/train", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	restricted := newTestServer(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"https://shapes.example"}
	}).Handler()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	restricted.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.Limits.MaxBodyBytes = 1024
	}).Handler()

	body := `{"name":"big","payload":"` + strings.Repeat("x", 4096) + `"}`
	rec := do(t, h, http.MethodPost, "/saved-models", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(dataset.ErrUnknownDataset))
	assert.Equal(t, http.StatusInternalServerError, statusFor(trainer.ErrEmptyExport))
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Server.H2C = true
		c.Server.ShutdownGrace = "2s"
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
