package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/application/service"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
)

const (
	ownerHeader    = "X-User-ID"
	ownerKey       = "owner"
	anonymousOwner = "anonymous"

	defaultListLimit = 50
	maxListLimit     = 200
)

// HealthFunc reports overall readiness and per-component detail
type HealthFunc func() (healthy bool, components interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	sessions    service.SessionService
	submissions port.SubmissionRepository
	roster      *entity.Roster
	health      HealthFunc
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	sessions service.SessionService,
	submissions port.SubmissionRepository,
	roster *entity.Roster,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		sessions:    sessions,
		submissions: submissions,
		roster:      roster,
		health:      health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// FlowResponse describes a registered flow
type FlowResponse struct {
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	Sections []wizard.Section `json:"sections"`
	Uploads  UploadsResponse  `json:"uploads"`
}

// UploadsResponse is the upload policy shown to clients before transfer
type UploadsResponse struct {
	MaxFiles     int      `json:"maxFiles"`
	MaxFileSize  int64    `json:"maxFileSize"`
	MaxTotalSize int64    `json:"maxTotalSize"`
	AllowedTypes []string `json:"allowedTypes"`
}

// SetFieldsRequest carries a single write or a batch keyed by path
type SetFieldsRequest struct {
	Path   string                     `json:"path"`
	Value  json.RawMessage            `json:"value"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// JumpRequest selects a section by index
type JumpRequest struct {
	Index *int `json:"index" binding:"required"`
}

// DocumentsRequest offers files for the documents list
type DocumentsRequest struct {
	Files []entity.FileDescriptor `json:"files" binding:"required"`
}

// ProgressRequest reports transfer progress for one document
type ProgressRequest struct {
	Index    *int `json:"index" binding:"required"`
	Progress int  `json:"progress"`
	Failed   bool `json:"failed"`
}

// SubmissionResponse represents a delivered submission
type SubmissionResponse struct {
	TrackingID  string          `json:"trackingId"`
	Flow        string          `json:"flow"`
	Status      string          `json:"status"`
	ExternalRef string          `json:"externalRef,omitempty"`
	SubmittedAt string          `json:"submittedAt"`
	Record      json.RawMessage `json:"record"`
}

// ownerMiddleware resolves the caller identity from the request header
func ownerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader(ownerHeader)
		if owner == "" {
			owner = anonymousOwner
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerOf(c *gin.Context) string {
	if owner := c.GetString(ownerKey); owner != "" {
		return owner
	}
	return anonymousOwner
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	status := http.StatusOK
	if h.health != nil {
		healthy, components := h.health()
		resp.Components = components
		if !healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

// ListFlows handles GET /api/v1/flows
func (h *Handlers) ListFlows(c *gin.Context) {
	flows := h.sessions.Flows()
	out := make([]FlowResponse, 0, len(flows))
	for _, f := range flows {
		out = append(out, FlowResponse{
			Name:     f.Name,
			Title:    f.Title,
			Sections: f.Registry.Sections(),
			Uploads: UploadsResponse{
				MaxFiles:     f.Uploads.MaxFiles,
				MaxFileSize:  f.Uploads.MaxFileSize,
				MaxTotalSize: f.Uploads.MaxTotalSize,
				AllowedTypes: f.Uploads.AllowedTypes,
			},
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// StartSession handles POST /api/v1/flows/:flow/sessions
func (h *Handlers) StartSession(c *gin.Context) {
	snap, err := h.sessions.Start(c.Request.Context(), c.Param("flow"), ownerOf(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: snap})
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	snap, err := h.sessions.Get(c.Request.Context(), c.Param("id"), ownerOf(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snap})
}

// SetFields handles PATCH /api/v1/sessions/:id/fields
func (h *Handlers) SetFields(c *gin.Context) {
	var req SetFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	updates := req.updates()
	if len(updates) == 0 {
		badRequest(c, "path or fields is required")
		return
	}

	res, err := h.sessions.SetFields(c.Request.Context(), c.Param("id"), ownerOf(c), updates)
	h.action(c, res, err)
}

// updates flattens the request. Batch keys are applied in sorted order so
// the outcome does not depend on map iteration.
func (r SetFieldsRequest) updates() []service.FieldUpdate {
	var out []service.FieldUpdate
	if r.Path != "" {
		out = append(out, service.FieldUpdate{Path: r.Path, Value: rawOrNull(r.Value)})
	}

	paths := make([]string, 0, len(r.Fields))
	for p := range r.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		out = append(out, service.FieldUpdate{Path: p, Value: rawOrNull(r.Fields[p])})
	}
	return out
}

func rawOrNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}

// Next handles POST /api/v1/sessions/:id/next
func (h *Handlers) Next(c *gin.Context) {
	res, err := h.sessions.Next(c.Request.Context(), c.Param("id"), ownerOf(c))
	h.action(c, res, err)
}

// Previous handles POST /api/v1/sessions/:id/previous
func (h *Handlers) Previous(c *gin.Context) {
	res, err := h.sessions.Previous(c.Request.Context(), c.Param("id"), ownerOf(c))
	h.action(c, res, err)
}

// JumpTo handles POST /api/v1/sessions/:id/jump
func (h *Handlers) JumpTo(c *gin.Context) {
	var req JumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.sessions.JumpTo(c.Request.Context(), c.Param("id"), ownerOf(c), *req.Index)
	h.action(c, res, err)
}

// SaveDraft handles POST /api/v1/sessions/:id/save
func (h *Handlers) SaveDraft(c *gin.Context) {
	res, err := h.sessions.SaveDraft(c.Request.Context(), c.Param("id"), ownerOf(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: res})
}

// Submit handles POST /api/v1/sessions/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	res, err := h.sessions.Submit(c.Request.Context(), c.Param("id"), ownerOf(c))
	h.action(c, res, err)
}

// Discard handles POST /api/v1/sessions/:id/discard
func (h *Handlers) Discard(c *gin.Context) {
	snap, err := h.sessions.Discard(c.Request.Context(), c.Param("id"), ownerOf(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snap})
}

// AddDocuments handles POST /api/v1/sessions/:id/documents
func (h *Handlers) AddDocuments(c *gin.Context) {
	var req DocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.sessions.AddDocuments(c.Request.Context(), c.Param("id"), ownerOf(c), req.Files)
	h.action(c, res, err)
}

// UploadProgress handles POST /api/v1/sessions/:id/documents/progress
func (h *Handlers) UploadProgress(c *gin.Context) {
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.sessions.UploadProgress(c.Request.Context(), c.Param("id"), ownerOf(c), *req.Index, req.Progress, req.Failed)
	h.action(c, res, err)
}

// RemoveDocument handles DELETE /api/v1/sessions/:id/documents/:index
func (h *Handlers) RemoveDocument(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "Invalid document index")
		return
	}
	res, err := h.sessions.RemoveDocument(c.Request.Context(), c.Param("id"), ownerOf(c), index)
	h.action(c, res, err)
}

// ListDepartments handles GET /api/v1/rosters
func (h *Handlers) ListDepartments(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.roster.Departments()})
}

// ListManagers handles GET /api/v1/rosters/:department
func (h *Handlers) ListManagers(c *gin.Context) {
	managers := h.roster.Managers(c.Param("department"))
	if len(managers) == 0 {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "Department not found",
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: managers})
}

// ListSubmissions handles GET /api/v1/submissions
func (h *Handlers) ListSubmissions(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "Invalid limit")
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	subs, err := h.submissions.ListByOwner(c.Request.Context(), ownerOf(c), limit)
	if err != nil {
		h.logger.Error("Failed to list submissions", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to retrieve submissions",
		})
		return
	}

	out := make([]SubmissionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionResponse(s))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetSubmission handles GET /api/v1/submissions/:trackingId
func (h *Handlers) GetSubmission(c *gin.Context) {
	sub, err := h.submissions.GetByTrackingID(c.Request.Context(), c.Param("trackingId"))
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		h.logger.Error("Failed to get submission", "tracking_id", c.Param("trackingId"), "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to retrieve submission",
		})
		return
	}
	// foreign submissions look missing
	if sub == nil || sub.Owner != ownerOf(c) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "Submission not found",
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toSubmissionResponse(sub)})
}

func toSubmissionResponse(s *entity.Submission) SubmissionResponse {
	record := json.RawMessage(s.Payload)
	if !json.Valid(record) {
		record = json.RawMessage("{}")
	}
	return SubmissionResponse{
		TrackingID:  s.TrackingID,
		Flow:        s.Flow,
		Status:      s.Status,
		ExternalRef: s.ExternalRef,
		SubmittedAt: s.SubmittedAt.UTC().Format(time.RFC3339),
		Record:      record,
	}
}

// action writes the result of a mutating session call
func (h *Handlers) action(c *gin.Context, res service.ActionResult, err error) {
	if err != nil {
		h.fail(c, err, res)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: res})
}

// fail maps a service error onto a status code. data is attached for
// failures that carry a useful body, like a rejected submit.
func (h *Handlers) fail(c *gin.Context, err error, data interface{}) {
	status, retryable := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}

	resp := Response{Success: false, Error: err.Error(), Retryable: retryable}
	switch status {
	case http.StatusUnprocessableEntity, http.StatusBadGateway, http.StatusGatewayTimeout:
		resp.Data = data
	case http.StatusInternalServerError:
		resp.Error = "Internal server error"
	}
	c.JSON(status, resp)
}

func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrUnknownFlow):
		return http.StatusNotFound, false
	case errors.Is(err, wizard.ErrValidationFailed):
		return http.StatusUnprocessableEntity, false
	case errors.Is(err, wizard.ErrSubmissionInProgress), errors.Is(err, wizard.ErrFlowClosed):
		return http.StatusConflict, false
	case errors.Is(err, wizard.ErrSubmissionTimeout):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, wizard.ErrSubmissionFailed):
		return http.StatusBadGateway, true
	case errors.Is(err, wizard.ErrInvalidPath),
		errors.Is(err, wizard.ErrManagedPath),
		errors.Is(err, wizard.ErrDocumentIndex),
		errors.Is(err, wizard.ErrInvalidFileSize),
		errors.Is(err, wizard.ErrTooManyFiles),
		errors.Is(err, wizard.ErrFileTooLarge),
		errors.Is(err, wizard.ErrTotalSizeExceeded),
		errors.Is(err, wizard.ErrUnsupportedType),
		errors.Is(err, wizard.ErrDuplicateFile):
		return http.StatusBadRequest, false
	default:
		return http.StatusInternalServerError, false
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}
