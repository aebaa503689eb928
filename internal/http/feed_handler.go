package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/oncall-scheduler/internal/application"
)

type feedService interface {
	Feed(ctx context.Context, token, rosterName string) ([]byte, error)
}

// FeedHandler serves the iCalendar feed. The token embedded in the path is
// the only credential; no actor header is involved.
type FeedHandler struct {
	service   feedService
	responder responder
	logger    *slog.Logger
}

func NewFeedHandler(service feedService, logger *slog.Logger) *FeedHandler {
	base := defaultLogger(logger)
	return &FeedHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *FeedHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FeedHandler", operation, attrs...)
}

// Serve handles GET /feeds/{token}/{roster}.ics. The roster segment is the
// roster's name, matched case-insensitively.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, rosterName, ok := parseFeedPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	logger := h.log(r.Context(), "Serve", "roster_name", rosterName)

	calendar, err := h.service.Feed(r.Context(), token, rosterName)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrNotFound):
			logger.InfoContext(r.Context(), "feed request for unknown token or roster")
			http.NotFound(w, r)
		case errors.Is(err, application.ErrUnauthorized):
			logger.InfoContext(r.Context(), "feed request rejected for non-member token")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		default:
			logger.ErrorContext(r.Context(), "feed rendering failed", "error", err, "error_kind", application.ErrorKind(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	logger.With("bytes", len(calendar)).InfoContext(r.Context(), "feed served")
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(calendar); err != nil {
		logger.ErrorContext(r.Context(), "failed to write feed response", "error", err)
	}
}

func parseFeedPath(path string) (token, rosterName string, ok bool) {
	rest := strings.TrimPrefix(path, "/feeds/")
	token, file, found := strings.Cut(rest, "/")
	if !found || token == "" {
		return "", "", false
	}
	rosterName = strings.TrimSuffix(file, ".ics")
	if rosterName == file || rosterName == "" || strings.Contains(rosterName, "/") {
		return "", "", false
	}
	return token, rosterName, true
}
