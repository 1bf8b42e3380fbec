package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/forkline/outreach-api/internal/domain"
)

// Key type for context values
type ContextKey string

// Context keys for various values
const (
	// OrgContextKey is the context key for the authenticated org context
	OrgContextKey ContextKey = "orgContext"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// WithOrgContext stores the authenticated org context on the request context.
func WithOrgContext(ctx context.Context, org domain.OrgContext) context.Context {
	return context.WithValue(ctx, OrgContextKey, org)
}

// GetOrgContext retrieves the authenticated org context.
// Returns domain.ErrUnauthorized when the request was not authenticated.
func GetOrgContext(ctx context.Context) (domain.OrgContext, error) {
	org, ok := ctx.Value(OrgContextKey).(domain.OrgContext)
	if !ok {
		return domain.OrgContext{}, domain.ErrUnauthorized
	}
	return org, nil
}

// SetTraceID adds a trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	traceID := generateTraceID()
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID creates a random trace ID for request tracking.
// Returns a 32-character hex string (16 bytes) for optimal uniqueness.
// If crypto/rand fails, falls back to a time-based alternative, but never
// returns a static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)

	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"bytes_requested", TraceIDLength,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}

	return hex.EncodeToString(b)
}

// generateFallbackTraceID creates a trace ID using time and additional
// sources of entropy when the crypto/rand source fails.
func generateFallbackTraceID() string {
	fallbackID := make([]byte, TraceIDLength)

	now := time.Now().UnixNano()
	binary.BigEndian.PutUint64(fallbackID[:8], uint64(now))
	binary.BigEndian.PutUint32(fallbackID[8:12], uint32(time.Now().Nanosecond()))
	binary.BigEndian.PutUint32(fallbackID[12:16], uint32(time.Now().Unix()))

	return hex.EncodeToString(fallbackID)
}
