package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
)

// ActorValidator resolves the user id presented in the Authorization header
// into an authenticated principal.
type ActorValidator interface {
	ValidateActor(ctx context.Context, userID string) (application.Principal, error)
}

// RequireActor authenticates requests from the bearer user id and stores the
// resulting principal in the request context. Unknown and deactivated users
// are rejected with 401.
func RequireActor(validator ActorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := extractActorID(r)
			if actorID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActorHeader)
				return
			}

			principal, err := validator.ValidateActor(r.Context(), actorID)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrNotFound), errors.Is(err, application.ErrUnauthorized):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "the acting user is unknown or deactivated"})
				default:
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "actor validation failed"})
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractActorID(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// RequestLogger assigns each request a sequence number and a request-scoped
// logger carried through the context.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
