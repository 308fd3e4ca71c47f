package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockhunter/stockhunter/internal/analyze"
	"github.com/stockhunter/stockhunter/internal/api/handlers"
	"github.com/stockhunter/stockhunter/internal/feature"
	"github.com/stockhunter/stockhunter/internal/report"
	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

func newTestRouter(t *testing.T) (http.Handler, *report.Store, *watchlist.Store) {
	t.Helper()
	log := logger.NewNop()
	reports := report.New(t.TempDir(), log)
	watch := watchlist.New(filepath.Join(t.TempDir(), "watchlist.json"))
	st := store.New(t.TempDir(), log)

	router := NewRouter(
		handlers.NewReportHandler(reports, log),
		handlers.NewWatchlistHandler(watch, log),
		handlers.NewStatusHandler(st, watch, log),
		log,
	)
	return router, reports, watch
}

func doJSON(t *testing.T, router http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReportEndpoints(t *testing.T) {
	router, reports, _ := newTestRouter(t)

	res := &analyze.Result{
		Mode: analyze.ModeCurrent,
		Rows: []analyze.Row{{
			Code:     "sh.600001",
			Name:     "alpha",
			Snapshot: &feature.Snapshot{Date: "2024-06-03", Close: 12.5, YearLineState: feature.YearLineNoData},
			Reason:   "above monthly line",
		}},
	}
	name, err := reports.Write(res, time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rec, body := doJSON(t, router, http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/reports/"+name, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/reports/analysis_result_19990101.csv", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchlistEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/watchlist", []byte(`{"code":"sh.600001"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate add is idempotent.
	rec, body := doJSON(t, router, http.MethodPost, "/api/watchlist", []byte(`{"code":"sh.600001"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["added"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/watchlist", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/api/watchlist", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/watchlist/sh.600001", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/watchlist/sh.600001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router, _, watch := newTestRouter(t)
	require.NoError(t, watch.Save([]string{"sh.600001", "sz.000002"}))

	rec, body := doJSON(t, router, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["symbols"])
	assert.EqualValues(t, 2, body["watchlist"])
}
