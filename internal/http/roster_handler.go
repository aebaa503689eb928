package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/persistence"
)

// dateLayout is the wire format for calendar dates in request and response
// payloads.
const dateLayout = "2006-01-02"

type rosterService interface {
	CreateRoster(ctx context.Context, params application.CreateRosterParams) (persistence.Roster, error)
	UpdateRoster(ctx context.Context, params application.UpdateRosterParams) (persistence.Roster, error)
	DeleteRoster(ctx context.Context, principal application.Principal, rosterID string) error
	GetRoster(ctx context.Context, rosterID string) (persistence.Roster, error)
	ListRosters(ctx context.Context) ([]persistence.Roster, error)
	ListMembers(ctx context.Context, rosterID string) ([]persistence.User, error)
	AddMember(ctx context.Context, params application.MembershipParams) error
	RemoveMember(ctx context.Context, params application.MembershipParams) error
	SetAdmin(ctx context.Context, params application.MembershipParams) error
}

type onCallService interface {
	CurrentOnCall(ctx context.Context, rosterID string) (*application.OnCallStatus, error)
	NextRotationStartDate(ctx context.Context, rosterID string) (time.Time, error)
}

type RosterHandler struct {
	service   rosterService
	onCall    onCallService
	responder responder
	logger    *slog.Logger
}

func NewRosterHandler(service rosterService, onCall onCallService, logger *slog.Logger) *RosterHandler {
	base := defaultLogger(logger)
	return &RosterHandler{service: service, onCall: onCall, responder: newResponder(base), logger: base}
}

func (h *RosterHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RosterHandler", operation, attrs...)
}

func (h *RosterHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req rosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode roster request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	roster, err := h.service.CreateRoster(r.Context(), application.CreateRosterParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "roster creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("roster_id", roster.ID).InfoContext(r.Context(), "roster created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, rosterResponse{Roster: toRosterDTO(roster)})
}

// Get renders the roster together with the current on-call holder and the
// date the next generated rotation would begin.
func (h *RosterHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "roster_id", rosterID)

	roster, err := h.service.GetRoster(r.Context(), rosterID)
	if err != nil {
		logger.ErrorContext(r.Context(), "roster fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	detail := rosterDetailResponse{Roster: toRosterDTO(roster)}
	if h.onCall != nil {
		status, err := h.onCall.CurrentOnCall(r.Context(), rosterID)
		if err != nil {
			logger.ErrorContext(r.Context(), "on-call resolution failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		detail.OnCall = toOnCallDTO(status)

		next, err := h.onCall.NextRotationStartDate(r.Context(), rosterID)
		if err != nil {
			logger.ErrorContext(r.Context(), "next rotation start lookup failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		detail.NextRotationStartDate = next.Format(dateLayout)
	}

	logger.InfoContext(r.Context(), "roster fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, detail)
}

func (h *RosterHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req rosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "roster_id", rosterID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode roster update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "roster_id", rosterID)

	roster, err := h.service.UpdateRoster(r.Context(), application.UpdateRosterParams{
		Principal: principal,
		RosterID:  rosterID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "roster update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "roster updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rosterResponse{Roster: toRosterDTO(roster)})
}

func (h *RosterHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "roster_id", rosterID)
	if err := h.service.DeleteRoster(r.Context(), principal, rosterID); err != nil {
		logger.ErrorContext(r.Context(), "roster delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "roster deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	rosters, err := h.service.ListRosters(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "roster list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]rosterDTO, 0, len(rosters))
	for _, roster := range rosters {
		out = append(out, toRosterDTO(roster))
	}

	logger.With("result_count", len(out)).InfoContext(r.Context(), "rosters listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRostersResponse{Rosters: out})
}

func (h *RosterHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "ListMembers", "principal_id", principal.UserID, "roster_id", rosterID)

	members, err := h.service.ListMembers(r.Context(), rosterID)
	if err != nil {
		logger.ErrorContext(r.Context(), "member list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(members)).InfoContext(r.Context(), "members listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(members)})
}

func (h *RosterHandler) AddMember(w http.ResponseWriter, r *http.Request) {
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

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "AddMember", "principal_id", principal.UserID, "roster_id", rosterID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode member request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "AddMember", "principal_id", principal.UserID, "roster_id", rosterID, "user_id", req.UserID)

	err := h.service.AddMember(r.Context(), application.MembershipParams{
		Principal: principal,
		RosterID:  rosterID,
		UserID:    strings.TrimSpace(req.UserID),
		Admin:     req.Admin,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "member addition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "member added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, nil)
}

// UpdateMember toggles the administrator flag for an existing member.
func (h *RosterHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, rosterOK := RosterIDFromContext(r.Context())
	userID, userOK := UserIDFromContext(r.Context())
	if !rosterOK || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}
	if !userOK || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateMember", "principal_id", principal.UserID, "roster_id", rosterID, "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode member update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateMember", "principal_id", principal.UserID, "roster_id", rosterID, "user_id", userID)

	err := h.service.SetAdmin(r.Context(), application.MembershipParams{
		Principal: principal,
		RosterID:  rosterID,
		UserID:    userID,
		Admin:     req.Admin,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "member update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "member updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RosterHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rosterID, rosterOK := RosterIDFromContext(r.Context())
	userID, userOK := UserIDFromContext(r.Context())
	if !rosterOK || strings.TrimSpace(rosterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRosterID)
		return
	}
	if !userOK || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "RemoveMember", "principal_id", principal.UserID, "roster_id", rosterID, "user_id", userID)

	err := h.service.RemoveMember(r.Context(), application.MembershipParams{
		Principal: principal,
		RosterID:  rosterID,
		UserID:    userID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "member removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "member removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type rosterRequest struct {
	Name           string  `json:"name"`
	FallbackUserID *string `json:"fallback_user_id"`
}

func (r rosterRequest) toInput() application.RosterInput {
	return application.RosterInput{
		Name:           strings.TrimSpace(r.Name),
		FallbackUserID: r.FallbackUserID,
	}
}

type memberRequest struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
}

type rosterResponse struct {
	Roster rosterDTO `json:"roster"`
}

type listRostersResponse struct {
	Rosters []rosterDTO `json:"rosters"`
}

type rosterDetailResponse struct {
	Roster                rosterDTO  `json:"roster"`
	OnCall                *onCallDTO `json:"on_call"`
	NextRotationStartDate string     `json:"next_rotation_start_date,omitempty"`
}

type rosterDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	FallbackUserID *string `json:"fallback_user_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// onCallDTO describes the active responsibility holder. Until is omitted for
// fallback coverage, which has no scheduled end.
type onCallDTO struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Until     string `json:"until,omitempty"`
	Fallback  bool   `json:"fallback"`
}

func toRosterDTO(roster persistence.Roster) rosterDTO {
	return rosterDTO{
		ID:             roster.ID,
		Name:           roster.Name,
		FallbackUserID: roster.FallbackUserID,
		CreatedAt:      roster.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      roster.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toOnCallDTO(status *application.OnCallStatus) *onCallDTO {
	if status == nil {
		return nil
	}
	dto := &onCallDTO{
		UserID:    status.UserID,
		FirstName: status.FirstName,
		LastName:  status.LastName,
		Fallback:  status.Fallback,
	}
	if status.Until != nil {
		dto.Until = status.Until.Format(time.RFC3339)
	}
	return dto
}
