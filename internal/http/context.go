package http

import (
	"context"
	"log/slog"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/logging"
)

type contextKey string

const (
	principalContextKey    contextKey = "principal"
	userIDContextKey       contextKey = "user_id"
	rosterIDContextKey     contextKey = "roster_id"
	assignmentIDContextKey contextKey = "assignment_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithRosterID injects the roster identifier resolved from the request path.
func ContextWithRosterID(ctx context.Context, rosterID string) context.Context {
	return context.WithValue(ctx, rosterIDContextKey, rosterID)
}

// RosterIDFromContext extracts a roster identifier previously associated with the context.
func RosterIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(rosterIDContextKey).(string)
	return id, ok
}

// ContextWithAssignmentID injects the assignment identifier resolved from the request path.
func ContextWithAssignmentID(ctx context.Context, assignmentID string) context.Context {
	return context.WithValue(ctx, assignmentIDContextKey, assignmentID)
}

// AssignmentIDFromContext extracts an assignment identifier previously associated with the context.
func AssignmentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(assignmentIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request-scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts a request-scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
