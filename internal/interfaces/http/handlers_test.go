package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/dispatcher"
	"github.com/garyjia/backoffice-wizard/internal/application/service"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/external/simulated"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/storage"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
	"github.com/garyjia/backoffice-wizard/pkg/database"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

func newTestServer(t *testing.T, failureRate float64) *Server {
	t.Helper()
	logger := zap.NewNop()

	conn, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "wizard.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, database.NewMigrator(conn, logger).RunEmbedded())
	db := sqlite.NewDB(conn.DB, logger)
	repo := sqlite.NewSubmissionRepository(db, logger)

	files := storage.NewLocalFileStorage(t.TempDir(), logger)
	drafts := storage.NewFileDraftStore(files)

	transport := simulated.NewTransport(simulated.Config{FailureRate: failureRate, Seed: 7}, logger)
	coordinator := wizard.NewCoordinator(transport, repo, time.Second, logger)

	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	roster := entity.DefaultRoster()
	flows := []*wizard.Flow{
		wizard.NewRequestFlow(roster, wizard.DefaultUploadPolicy()),
		wizard.NewOnboardingFlow(wizard.DefaultUploadPolicy()),
	}
	sessions := service.NewSessionService(flows, drafts, coordinator, d, logger)

	return NewServer(DefaultServerConfig(), Dependencies{
		Sessions:    sessions,
		Submissions: repo,
		Roster:      roster,
	}, utils.NewSugarLogger(logger))
}

func do(t *testing.T, s *Server, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, s *Server, owner string) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/flows/request/sessions", owner, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := gjson.Get(w.Body.String(), "data.id").String()
	require.NotEmpty(t, id)
	return id
}

var validFields = map[string]interface{}{
	"requestType":              "leave",
	"requesterInfo.name":       "Asha Pillai",
	"requesterInfo.employeeId": "EMP-1042",
	"requesterInfo.email":      "asha.pillai@estateops.in",
	"requesterInfo.position":   "Leasing Associate",
	"requesterInfo.department": "sales",
	"title":                    "Annual leave in December",
	"description":              "Two weeks of annual leave for a family trip.",
	"targetDepartment":         "human_resources",
	"businessJustification":    strings.Repeat("j", wizard.MinJustificationLength),
	"priority":                 "normal",
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 0)

	w := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", gjson.Get(w.Body.String(), "status").String())
}

func TestListFlows(t *testing.T) {
	s := newTestServer(t, 0)

	w := do(t, s, http.MethodGet, "/api/v1/flows", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "data.#").Int())
	assert.Equal(t, "request", gjson.Get(body, "data.0.name").String())
	assert.Equal(t, int64(6), gjson.Get(body, "data.0.sections.#").Int())
	assert.Equal(t, int64(5), gjson.Get(body, "data.0.uploads.maxFiles").Int())
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	id := startSession(t, s, "alice")
	base := "/api/v1/sessions/" + id

	w := do(t, s, http.MethodGet, base, "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "sessions are private to their owner")

	w = do(t, s, http.MethodPost, base+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "data.ok").Bool())
	assert.Equal(t, "Request type is required", gjson.Get(w.Body.String(), "data.errors.requestType").String())

	w = do(t, s, http.MethodPatch, base+"/fields", "alice", map[string]interface{}{"path": "requestType", "value": "leave"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "leave", gjson.Get(w.Body.String(), "data.session.values.requestType").String())

	w = do(t, s, http.MethodPost, base+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.ok").Bool())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.session.current").Int())

	w = do(t, s, http.MethodPost, base+"/previous", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "data.session.current").Int())

	w = do(t, s, http.MethodPost, base+"/jump", "alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "index is required")

	w = do(t, s, http.MethodPost, base+"/save", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.SubmissionStatusDraft, gjson.Get(w.Body.String(), "data.status").String())
	assert.Equal(t, "leave", gjson.Get(w.Body.String(), "data.requestType").String())

	w = do(t, s, http.MethodPost, base+"/discard", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, base, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetFields_Validation(t *testing.T) {
	s := newTestServer(t, 0)
	base := "/api/v1/sessions/" + startSession(t, s, "alice")

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"empty body", `{}`, http.StatusBadRequest},
		{"malformed json", `{"path":`, http.StatusBadRequest},
		{"invalid path", map[string]interface{}{"path": "bad path!", "value": 1}, http.StatusBadRequest},
		{"document list", map[string]interface{}{"path": "documents", "value": []map[string]interface{}{{"name": "a.exe", "size": 1}}}, http.StatusBadRequest},
		{"document list in batch", map[string]interface{}{"fields": map[string]interface{}{"title": "T2", "documents.0": map[string]int{"size": 1}}}, http.StatusBadRequest},
		{"batch", map[string]interface{}{"fields": map[string]interface{}{"title": "T", "priority": "high"}}, http.StatusOK},
		{"null value", map[string]interface{}{"path": "title", "value": nil}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPatch, base+"/fields", "alice", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := do(t, s, http.MethodGet, base, "alice", nil)
	assert.Equal(t, "high", gjson.Get(w.Body.String(), "data.values.priority").String())
	assert.NotEqual(t, "T2", gjson.Get(w.Body.String(), "data.values.title").String())
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "data.values.documents.#").Int())
}

func TestSubmit_ValidationFailure(t *testing.T) {
	s := newTestServer(t, 0)
	base := "/api/v1/sessions/" + startSession(t, s, "alice")

	w := do(t, s, http.MethodPost, base+"/submit", "alice", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "data.errors.requestType").String())
}

func TestSubmit_SuccessAndHistory(t *testing.T) {
	s := newTestServer(t, 0)
	base := "/api/v1/sessions/" + startSession(t, s, "alice")

	w := do(t, s, http.MethodPatch, base+"/fields", "alice", map[string]interface{}{"fields": validFields})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, base+"/submit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	trackingID := gjson.Get(w.Body.String(), "data.session.result.id").String()
	assert.Equal(t, fmt.Sprintf("REQ-%d-0001", time.Now().UTC().Year()), trackingID)

	w = do(t, s, http.MethodPost, base+"/submit", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "submitted sessions are closed")

	w = do(t, s, http.MethodGet, "/api/v1/submissions", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, trackingID, gjson.Get(w.Body.String(), "data.0.trackingId").String())

	w = do(t, s, http.MethodGet, "/api/v1/submissions/"+trackingID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Annual leave in December", gjson.Get(w.Body.String(), "data.record.title").String())

	w = do(t, s, http.MethodGet, "/api/v1/submissions/"+trackingID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/submissions?limit=zero", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmit_TransportFailureIsRetryable(t *testing.T) {
	s := newTestServer(t, 1)
	base := "/api/v1/sessions/" + startSession(t, s, "alice")

	w := do(t, s, http.MethodPatch, base+"/fields", "alice", map[string]interface{}{"fields": validFields})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPost, base+"/submit", "alice", nil)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.True(t, gjson.Get(w.Body.String(), "retryable").Bool())
	assert.Equal(t, "EDITING", gjson.Get(w.Body.String(), "data.session.phase").String())
}

func TestDocuments(t *testing.T) {
	s := newTestServer(t, 0)
	base := "/api/v1/sessions/" + startSession(t, s, "alice")

	w := do(t, s, http.MethodPost, base+"/documents", "alice", map[string]interface{}{
		"files": []entity.FileDescriptor{{Name: "quote.pdf", Size: 2048, MimeType: "application/pdf"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.UploadStatePending, gjson.Get(w.Body.String(), "data.session.values.documents.0.uploadState").String())

	w = do(t, s, http.MethodPost, base+"/documents/progress", "alice", map[string]interface{}{"index": 0, "progress": 100})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.UploadStateUploaded, gjson.Get(w.Body.String(), "data.session.values.documents.0.uploadState").String())

	w = do(t, s, http.MethodPost, base+"/documents", "alice", map[string]interface{}{
		"files": []entity.FileDescriptor{{Name: "setup.exe", Size: 10, MimeType: "application/x-msdownload"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, base+"/documents", "alice", map[string]interface{}{
		"files": []entity.FileDescriptor{{Name: "neg.pdf", Size: -5, MimeType: "application/pdf"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, base+"/documents/x", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodDelete, base+"/documents/4", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodDelete, base+"/documents/0", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "data.session.values.documents.#").Int())
}

func TestRosters(t *testing.T) {
	s := newTestServer(t, 0)

	w := do(t, s, http.MethodGet, "/api/v1/rosters", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "finance")

	w = do(t, s, http.MethodGet, "/api/v1/rosters/finance", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.#").Int())

	w = do(t, s, http.MethodGet, "/api/v1/rosters/astrology", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownFlow(t *testing.T) {
	s := newTestServer(t, 0)
	w := do(t, s, http.MethodPost, "/api/v1/flows/payroll/sessions", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnonymousOwner(t *testing.T) {
	s := newTestServer(t, 0)
	id := startSession(t, s, "")

	w := do(t, s, http.MethodGet, "/api/v1/sessions/"+id, anonymousOwner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
