package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"jiragent/internal/bootstrap/logging"
	"jiragent/internal/domain/fieldconfig"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/infrastructure/jira"
	"jiragent/internal/ports"
	"jiragent/internal/usecase/intake"
)

type apiHandler struct {
	svc *intake.Service
}

func newAPIHandler(svc *intake.Service) http.Handler {
	h := &apiHandler{svc: svc}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.listRequests)
			r.Post("/", h.createRequest)
			r.Post("/analyze", h.analyzeRequest)
			r.Post("/release", h.releaseBatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getRequest)
				r.Patch("/", h.updateRequest)
				r.Post("/approve", h.approveRequest)
				r.Post("/reject", h.rejectRequest)
			})
		})
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/metrics", h.dashboardMetrics)
		})
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", h.listConnections)
			r.Post("/", h.createConnection)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getConnection)
				r.Put("/", h.updateConnection)
				r.Post("/test", h.testConnection)
				r.Get("/projects", h.listProjects)
				r.Route("/field-config", func(r chi.Router) {
					r.Get("/", h.getFieldConfig)
					r.Post("/refresh", h.refreshFieldConfig)
					r.Post("/{issueType}/{fieldKey}", h.toggleField)
				})
			})
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type requestPayload struct {
	Summary            string                       `json:"summary"`
	Description        string                       `json:"description"`
	SourceTag          string                       `json:"source_tag"`
	SourceContent      *domainrequest.SourceContent `json:"source_content,omitempty"`
	AcceptanceCriteria string                       `json:"acceptance_criteria,omitempty"`
	Requestor          string                       `json:"requestor,omitempty"`
	Assignee           string                       `json:"assignee,omitempty"`
	BusinessUnit       string                       `json:"business_unit,omitempty"`
	Tags               []string                     `json:"tags,omitempty"`
}

type requestResponse struct {
	RequestID          int64                        `json:"request_id"`
	Summary            string                       `json:"summary"`
	Description        string                       `json:"description"`
	Status             string                       `json:"status"`
	SourceTag          string                       `json:"source_tag"`
	SourceContent      *domainrequest.SourceContent `json:"source_content,omitempty"`
	AcceptanceCriteria string                       `json:"acceptance_criteria,omitempty"`
	Requestor          string                       `json:"requestor,omitempty"`
	Assignee           string                       `json:"assignee,omitempty"`
	BusinessUnit       string                       `json:"business_unit,omitempty"`
	Tags               []string                     `json:"tags,omitempty"`
	JiraIssueKey       string                       `json:"jira_issue_key,omitempty"`
	ReleasedAt         string                       `json:"released_at,omitempty"`
	CreatedAt          string                       `json:"created_at"`
	UpdatedAt          string                       `json:"updated_at"`
}

func toRequestResponse(r ports.RequestRecord) requestResponse {
	return requestResponse{
		RequestID:          r.RequestID,
		Summary:            r.Summary,
		Description:        r.Description,
		Status:             r.Status,
		SourceTag:          r.SourceTag,
		SourceContent:      r.SourceContent,
		AcceptanceCriteria: r.AcceptanceCriteria,
		Requestor:          r.Requestor,
		Assignee:           r.Assignee,
		BusinessUnit:       r.BusinessUnit,
		Tags:               r.Tags,
		JiraIssueKey:       r.JiraIssueKey,
		ReleasedAt:         r.ReleasedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (h *apiHandler) listRequests(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]requestResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRequestResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) createRequest(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	created, err := h.svc.CreateRequest(r.Context(), intake.CreateRequestInput{
		Summary:       payload.Summary,
		Description:   payload.Description,
		SourceTag:     payload.SourceTag,
		SourceContent: payload.SourceContent,
		Requestor:     payload.Requestor,
		Tags:          payload.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *apiHandler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.svc.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(record))
}

type requestPatchPayload struct {
	Summary            *string                      `json:"summary"`
	Description        *string                      `json:"description"`
	SourceContent      *domainrequest.SourceContent `json:"source_content"`
	AcceptanceCriteria *string                      `json:"acceptance_criteria"`
	Requestor          *string                      `json:"requestor"`
	Assignee           *string                      `json:"assignee"`
	BusinessUnit       *string                      `json:"business_unit"`
	Tags               *[]string                    `json:"tags"`
}

func (h *apiHandler) updateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload requestPatchPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	updated, err := h.svc.UpdateRequest(r.Context(), id, intake.UpdateRequestInput{
		Summary:            payload.Summary,
		Description:        payload.Description,
		SourceContent:      payload.SourceContent,
		AcceptanceCriteria: payload.AcceptanceCriteria,
		Requestor:          payload.Requestor,
		Assignee:           payload.Assignee,
		BusinessUnit:       payload.BusinessUnit,
		Tags:               payload.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(updated))
}

func (h *apiHandler) approveRequest(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, h.svc.ApproveRequest)
}

func (h *apiHandler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, h.svc.RejectRequest)
}

func (h *apiHandler) statusAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) (ports.RequestRecord, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := action(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(record))
}

type analyzePayload struct {
	RequestID   int64  `json:"request_id"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
}

func (h *apiHandler) analyzeRequest(w http.ResponseWriter, r *http.Request) {
	var payload analyzePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.svc.AnalyzeRequest(r.Context(), intake.AnalyzeRequestInput{
		RequestID:   payload.RequestID,
		Description: payload.Description,
		IssueType:   payload.IssueType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type releasePayload struct {
	RequestIDs []int64 `json:"request_ids"`
}

type releaseDetailResponse struct {
	RequestID int64  `json:"request_id"`
	Outcome   string `json:"outcome"`
	IssueKey  string `json:"issue_key,omitempty"`
	Message   string `json:"message,omitempty"`
}

type releaseResponse struct {
	BatchID string                  `json:"batch_id"`
	Total   int                     `json:"total"`
	Success int                     `json:"success"`
	Failed  int                     `json:"failed"`
	Skipped int                     `json:"skipped"`
	Missing int                     `json:"missing"`
	Details []releaseDetailResponse `json:"details"`
}

func (h *apiHandler) releaseBatch(w http.ResponseWriter, r *http.Request) {
	var payload releasePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.svc.ReleaseBatch(r.Context(), intake.ReleaseBatchInput{RequestIDs: payload.RequestIDs})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := releaseResponse{
		BatchID: result.BatchID,
		Total:   result.Total,
		Success: result.Success,
		Failed:  result.Failed,
		Skipped: result.Skipped,
		Missing: result.Missing,
		Details: make([]releaseDetailResponse, 0, len(result.Details)),
	}
	for _, d := range result.Details {
		out.Details = append(out.Details, releaseDetailResponse{
			RequestID: d.RequestID,
			Outcome:   string(d.Outcome),
			IssueKey:  d.IssueKey,
			Message:   d.Message,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) dashboardMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type connectionPayload struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	JiraURL        string `json:"jira_url"`
	JiraEmail      string `json:"jira_email"`
	JiraAPIToken   string `json:"jira_api_token"`
	JiraProjectKey string `json:"jira_project_key"`
}

type connectionResponse struct {
	ConnectionID   int64           `json:"connection_id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	JiraURL        string          `json:"jira_url"`
	JiraEmail      string          `json:"jira_email"`
	JiraProjectKey string          `json:"jira_project_key"`
	FieldConfig    json.RawMessage `json:"field_config,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// toConnectionResponse never echoes the API token back out.
func toConnectionResponse(c ports.ConnectionRecord) connectionResponse {
	return connectionResponse{
		ConnectionID:   c.ConnectionID,
		Name:           c.Name,
		Type:           c.Type,
		Status:         c.Status,
		JiraURL:        c.JiraURL,
		JiraEmail:      c.JiraEmail,
		JiraProjectKey: c.JiraProjectKey,
		FieldConfig:    json.RawMessage(c.FieldConfigJSON),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (h *apiHandler) listConnections(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListConnections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]connectionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toConnectionResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) createConnection(w http.ResponseWriter, r *http.Request) {
	var payload connectionPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	created, err := h.svc.CreateConnection(r.Context(), intake.CreateConnectionInput{
		Name:           payload.Name,
		Type:           payload.Type,
		JiraURL:        payload.JiraURL,
		JiraEmail:      payload.JiraEmail,
		JiraAPIToken:   payload.JiraAPIToken,
		JiraProjectKey: payload.JiraProjectKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConnectionResponse(created))
}

func (h *apiHandler) getConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.svc.GetConnection(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(record))
}

type connectionPatchPayload struct {
	Name           *string `json:"name"`
	JiraURL        *string `json:"jira_url"`
	JiraEmail      *string `json:"jira_email"`
	JiraAPIToken   *string `json:"jira_api_token"`
	JiraProjectKey *string `json:"jira_project_key"`
}

func (h *apiHandler) updateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload connectionPatchPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	updated, err := h.svc.UpdateConnection(r.Context(), id, intake.UpdateConnectionInput{
		Name:           payload.Name,
		JiraURL:        payload.JiraURL,
		JiraEmail:      payload.JiraEmail,
		JiraAPIToken:   payload.JiraAPIToken,
		JiraProjectKey: payload.JiraProjectKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(updated))
}

func (h *apiHandler) testConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.TestConnection(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        result.Success,
		"user":           result.User,
		"failure_reason": result.FailureReason,
		"schema_seeded":  result.SchemaSeeded,
	})
}

func (h *apiHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *apiHandler) getFieldConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cfg, err := h.svc.GetFieldConfig(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := fieldconfig.MarshalConfig(cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *apiHandler) refreshFieldConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cfg, err := h.svc.RefreshFieldConfig(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue_types": cfg.IssueTypes()})
}

type togglePayload struct {
	Included *bool `json:"included"`
	Required *bool `json:"required"`
}

func (h *apiHandler) toggleField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	issueType := chi.URLParam(r, "issueType")
	fieldKey := chi.URLParam(r, "fieldKey")

	var payload togglePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Included == nil && payload.Required == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "included or required must be set"})
		return
	}

	var err error
	if payload.Included != nil {
		_, err = h.svc.SetFieldIncluded(r.Context(), id, issueType, fieldKey, *payload.Included)
	}
	if err == nil && payload.Required != nil {
		_, err = h.svc.SetFieldRequired(r.Context(), id, issueType, fieldKey, *payload.Required)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain failures onto HTTP statuses. Partial batch outcomes
// never reach here; they are successful responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notEligible *domainrequest.NotEligibleError
	var apiErr *jira.APIError

	switch {
	case errors.As(err, &notEligible):
		problems := make([]map[string]any, 0, len(notEligible.Problems))
		for _, p := range notEligible.Problems {
			problems = append(problems, map[string]any{
				"request_id": p.RequestID,
				"reason":     p.Reason,
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "batch not eligible for release",
			"problems": problems,
		})
	case errors.Is(err, domainrequest.ErrInvalidTransition),
		errors.Is(err, domainrequest.ErrNotEditable),
		errors.Is(err, fieldconfig.ErrInvariantViolation):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ports.ErrRequestNotFound),
		errors.Is(err, ports.ErrConnectionNotFound),
		errors.Is(err, ports.ErrNoActiveConnection):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		logging.Error(r.Context(), "api request failed", slog.Any("err", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
