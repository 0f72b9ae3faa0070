package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/config"
	"github.com/amaumene/catalogarr/internal/controllers"
	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/home"
	"github.com/amaumene/catalogarr/internal/live"
	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/resume"
	"github.com/amaumene/catalogarr/internal/store"
	"github.com/amaumene/catalogarr/internal/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := zerolog.Nop()
	st := store.New(db, store.NewNotifier(), m, logger, store.Config{})
	obs := live.NewObserver(st.Notifier(), m, logger)

	cfg := &config.Config{ServerPort: "0", DefaultProfile: "default"}
	return NewServer(cfg, Deps{
		Store:        st,
		Home:         home.NewService(st, obs, home.DefaultConfig(), logger),
		Resume:       resume.NewTracker(st, obs, m, logger, "default"),
		Orchestrator: enrichment.NewOrchestrator(st, nil, utils.NewExclusionList(), m, logger, enrichment.DefaultConfig()),
		Ingest:       controllers.NewIngestController(st, 2, logger),
		Maintenance:  controllers.NewMaintenanceController(st, logger),
		Gatherer:     reg,
	}, logger)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func ingestMovie(t *testing.T, s *Server) string {
	t.Helper()
	year := 2020
	status, body := do(t, s, http.MethodPost, "/api/ingest", map[string]interface{}{
		"records": []models.IngestRecord{{
			Source: models.SourceRef{SourceType: models.SourceTelegram, SourceID: "chat/1"},
			Raw:    models.RawMediaMetadata{Title: "Movie X", Year: &year},
		}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var report controllers.IngestReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.Items, 1)
	require.Equal(t, controllers.IngestCreated, report.Items[0].Outcome)
	return report.Items[0].CanonicalKey
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
}

func TestIngestAndMedia(t *testing.T) {
	s := newTestServer(t)
	key := ingestMovie(t, s)

	status, body := do(t, s, http.MethodGet, "/api/media/"+key, nil)
	require.Equal(t, http.StatusOK, status)
	var media models.CanonicalMedia
	require.NoError(t, json.Unmarshal(body, &media))
	assert.Equal(t, key, media.CanonicalKey)
	assert.Len(t, media.Sources, 1)

	status, _ = do(t, s, http.MethodGet, "/api/media/missing:1999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, s, http.MethodPost, "/api/ingest", map[string]interface{}{"records": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResumeLifecycle(t *testing.T) {
	s := newTestServer(t)
	key := ingestMovie(t, s)

	status, _ := do(t, s, http.MethodGet, "/api/resume/"+key, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body := do(t, s, http.MethodPut, "/api/resume/"+key, map[string]interface{}{
		"position_ms": 3_000_000,
		"duration_ms": 6_000_000,
		"source":      map[string]string{"source_type": "telegram", "source_id": "chat/1"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var mark models.ResumeMark
	require.NoError(t, json.Unmarshal(body, &mark))
	assert.Equal(t, 50.0, mark.PositionPercent)
	assert.Equal(t, "default", mark.ProfileID)

	status, body = do(t, s, http.MethodGet, "/api/home/continue-watching", nil)
	require.Equal(t, http.StatusOK, status)
	var shelf struct {
		Items []home.HomeItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &shelf))
	require.Len(t, shelf.Items, 1)
	assert.Equal(t, key, shelf.Items[0].ID.Key)
	assert.Equal(t, models.SourceTelegram, shelf.Items[0].Source)

	status, _ = do(t, s, http.MethodPut, "/api/resume/"+key, map[string]interface{}{"position_ms": -1, "duration_ms": 10})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, s, http.MethodDelete, "/api/resume/"+key, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, s, http.MethodGet, "/api/resume/"+key, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRecentlyAdded(t *testing.T) {
	s := newTestServer(t)
	key := ingestMovie(t, s)

	status, body := do(t, s, http.MethodGet, "/api/home/recently-added?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	var shelf struct {
		Items []home.HomeItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &shelf))
	require.Len(t, shelf.Items, 1)
	assert.Equal(t, key, shelf.Items[0].ID.Key)
	assert.True(t, shelf.Items[0].IsNew)
}

func TestEnrichmentDisabled(t *testing.T) {
	s := newTestServer(t)
	key := ingestMovie(t, s)

	status, body := do(t, s, http.MethodPost, "/api/enrichment/"+key, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "disabled")

	status, body = do(t, s, http.MethodPost, "/api/enrichment/run", nil)
	require.Equal(t, http.StatusOK, status)
	var summary enrichment.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.True(t, summary.Disabled)
}

func TestSetEnrichmentSwitch(t *testing.T) {
	s := newTestServer(t)
	key := ingestMovie(t, s)

	status, body := do(t, s, http.MethodPut, "/api/media/"+key+"/enrichment", map[string]bool{"disabled": true})
	require.Equal(t, http.StatusOK, status, string(body))
	var media models.CanonicalMedia
	require.NoError(t, json.Unmarshal(body, &media))
	assert.True(t, media.EnrichmentDisabled)

	status, body = do(t, s, http.MethodGet, "/api/media/"+key, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &media))
	assert.True(t, media.EnrichmentDisabled)

	status, body = do(t, s, http.MethodPut, "/api/media/"+key+"/enrichment", map[string]bool{"disabled": false})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &media))
	assert.False(t, media.EnrichmentDisabled)

	status, _ = do(t, s, http.MethodPut, "/api/media/"+key+"/enrichment", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, s, http.MethodPut, "/api/media/missing:1999/enrichment", map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatusAndMetrics(t *testing.T) {
	s := newTestServer(t)
	ingestMovie(t, s)

	status, body := do(t, s, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Total             int64 `json:"total"`
		EnrichmentEnabled bool  `json:"enrichment_enabled"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.EqualValues(t, 1, resp.Total)
	assert.False(t, resp.EnrichmentEnabled)

	status, body = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "catalogarr_upserts_total")
}
