package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/persistence"
)

type assignmentService interface {
	CreateAssignment(ctx context.Context, params application.CreateAssignmentParams) (persistence.Assignment, error)
	UpdateAssignment(ctx context.Context, params application.UpdateAssignmentParams) (persistence.Assignment, error)
	DeleteAssignment(ctx context.Context, principal application.Principal, assignmentID string) error
	GetAssignment(ctx context.Context, assignmentID string) (persistence.Assignment, error)
	ListAssignments(ctx context.Context, params application.ListAssignmentsParams) ([]persistence.Assignment, error)
	GenerateRotation(ctx context.Context, params application.GenerateRotationParams) ([]persistence.Assignment, error)
}

type rotationPlanner interface {
	NextRotationStartDate(ctx context.Context, rosterID string) (time.Time, error)
}

type AssignmentHandler struct {
	service   assignmentService
	planner   rotationPlanner
	responder responder
	logger    *slog.Logger
}

func NewAssignmentHandler(service assignmentService, planner rotationPlanner, logger *slog.Logger) *AssignmentHandler {
	base := defaultLogger(logger)
	return &AssignmentHandler{service: service, planner: planner, responder: newResponder(base), logger: base}
}

func (h *AssignmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AssignmentHandler", operation, attrs...)
}

func (h *AssignmentHandler) ListForRoster(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, ok := RosterIDFromContext(r.Context())
	if !ok || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListForRoster", "principal_id", principal.UserID, "roster_id", rosterID)

	params, err := buildListParams(r.URL.Query(), principal, rosterID)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid list filter", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	assignments, err := h.service.ListAssignments(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(assignments)).InfoContext(r.Context(), "assignments listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssignmentsResponse{Assignments: toAssignmentDTOs(assignments)})
}

func (h *AssignmentHandler) CreateForRoster(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, ok := RosterIDFromContext(r.Context())
	if !ok || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateForRoster", "principal_id", principal.UserID, "roster_id", rosterID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode assignment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateForRoster", "principal_id", principal.UserID, "roster_id", rosterID)

	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid assignment dates", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	assignment, err := h.service.CreateAssignment(r.Context(), application.CreateAssignmentParams{
		Principal: principal,
		RosterID:  rosterID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("assignment_id", assignment.ID).InfoContext(r.Context(), "assignment created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assignmentID, ok := AssignmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assignmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssignmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "assignment_id", assignmentID)

	assignment, err := h.service.GetAssignment(r.Context(), assignmentID)
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "assignment fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

// Update replaces an assignment's owner and dates. The request carries the
// record version last read; a mismatch maps to 409.
func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assignmentID, ok := AssignmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assignmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssignmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req updateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "assignment_id", assignmentID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode assignment update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "assignment_id", assignmentID)

	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid assignment dates", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	expected, err := time.Parse(time.RFC3339Nano, req.ExpectedUpdatedAt)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid expected_updated_at", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimestamp)
		return
	}

	assignment, err := h.service.UpdateAssignment(r.Context(), application.UpdateAssignmentParams{
		Principal:         principal,
		AssignmentID:      assignmentID,
		Input:             input,
		ExpectedUpdatedAt: expected,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "assignment updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assignmentID, ok := AssignmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assignmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssignmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "assignment_id", assignmentID)

	if err := h.service.DeleteAssignment(r.Context(), principal, assignmentID); err != nil {
		logger.ErrorContext(r.Context(), "assignment delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "assignment deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// RotationPlan reports the date the next generated rotation would begin.
func (h *AssignmentHandler) RotationPlan(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.planner == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, ok := RosterIDFromContext(r.Context())
	if !ok || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "RotationPlan", "principal_id", principal.UserID, "roster_id", rosterID)

	next, err := h.planner.NextRotationStartDate(r.Context(), rosterID)
	if err != nil {
		logger.ErrorContext(r.Context(), "rotation plan failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "rotation plan computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rotationPlanResponse{NextStartDate: next.Format(dateLayout)})
}

// GenerateRotation creates one assignment per member per weekly block over
// the requested range.
func (h *AssignmentHandler) GenerateRotation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, ok := RosterIDFromContext(r.Context())
	if !ok || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req rotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "GenerateRotation", "principal_id", principal.UserID, "roster_id", rosterID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode rotation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "GenerateRotation", "principal_id", principal.UserID, "roster_id", rosterID)

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid rotation start date", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid rotation end date", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	assignments, err := h.service.GenerateRotation(r.Context(), application.GenerateRotationParams{
		Principal:      principal,
		RosterID:       rosterID,
		UserIDs:        req.UserIDs,
		StartDate:      startDate,
		EndDate:        endDate,
		StartingUserID: strings.TrimSpace(req.StartingUserID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "rotation generation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(assignments)).InfoContext(r.Context(), "rotation generated")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listAssignmentsResponse{Assignments: toAssignmentDTOs(assignments)})
}

func buildListParams(query url.Values, principal application.Principal, rosterID string) (application.ListAssignmentsParams, error) {
	params := application.ListAssignmentsParams{
		Principal: principal,
		RosterID:  rosterID,
		UserID:    strings.TrimSpace(query.Get("user_id")),
	}

	if raw := strings.TrimSpace(query.Get("starts_on_or_after")); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return application.ListAssignmentsParams{}, errInvalidDate
		}
		params.StartsOnOrAfter = &day
	}
	if raw := strings.TrimSpace(query.Get("ends_on_or_before")); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return application.ListAssignmentsParams{}, errInvalidDate
		}
		params.EndsOnOrBefore = &day
	}

	return params, nil
}

type assignmentRequest struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r assignmentRequest) toInput() (application.AssignmentInput, error) {
	startDate, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return application.AssignmentInput{}, errInvalidDate
	}
	endDate, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return application.AssignmentInput{}, errInvalidDate
	}
	return application.AssignmentInput{
		UserID:    strings.TrimSpace(r.UserID),
		StartDate: startDate,
		EndDate:   endDate,
	}, nil
}

type updateAssignmentRequest struct {
	assignmentRequest
	ExpectedUpdatedAt string `json:"expected_updated_at"`
}

type rotationRequest struct {
	UserIDs        []string `json:"user_ids"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	StartingUserID string   `json:"starting_user_id"`
}

type assignmentResponse struct {
	Assignment assignmentDTO `json:"assignment"`
}

type listAssignmentsResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

type rotationPlanResponse struct {
	NextStartDate string `json:"next_start_date"`
}

type assignmentDTO struct {
	ID        string `json:"id"`
	RosterID  string `json:"roster_id"`
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toAssignmentDTO(assignment persistence.Assignment) assignmentDTO {
	return assignmentDTO{
		ID:        assignment.ID,
		RosterID:  assignment.RosterID,
		UserID:    assignment.UserID,
		StartDate: assignment.StartDate.Format(dateLayout),
		EndDate:   assignment.EndDate.Format(dateLayout),
		CreatedAt: assignment.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: assignment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAssignmentDTOs(assignments []persistence.Assignment) []assignmentDTO {
	if len(assignments) == 0 {
		return nil
	}
	out := make([]assignmentDTO, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, toAssignmentDTO(assignment))
	}
	return out
}
