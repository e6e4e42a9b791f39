package common

import (
	"context"
	"log/slog"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeyHouseholdID contextKey = "household_id"
	ContextKeyLogger      contextKey = "logger"
)

// DefaultHouseholdID is used when a caller does not name a household.
const DefaultHouseholdID = "default"

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithHouseholdID adds a household ID to the context
func WithHouseholdID(ctx context.Context, householdID string) context.Context {
	return context.WithValue(ctx, ContextKeyHouseholdID, householdID)
}

// HouseholdIDFromContext extracts the household ID, defaulting to DefaultHouseholdID.
func HouseholdIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyHouseholdID).(string); ok && id != "" {
		return id
	}
	return DefaultHouseholdID
}

// WithLogger stores a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerFromContext returns the request-scoped logger or fallback.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ContextKeyLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
