package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	PartyIDKey    contextKey = "party_id"
	PartyEmailKey contextKey = "party_email"
	PartyRoleKey  contextKey = "party_role"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			requestID := GetRequestID(r.Context())
			partyID := GetPartyID(r.Context())

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("party_id", partyID).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// PartyContext extracts the acting party's identity from the headers set by
// the API gateway and adds it to the request context. Requests without an
// identity are rejected; /health stays open for monitoring.
func PartyContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		partyID := r.Header.Get("X-Party-ID")
		email := r.Header.Get("X-Party-Email")
		role := r.Header.Get("X-Party-Role")

		if partyID == "" || role == "" {
			Error(w, errors.Unauthorized("missing party context"))
			return
		}

		ctx := WithPartyContext(r.Context(), partyID, email, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability gates a route on a single capability check derived from
// the acting party's role. Authorization happens here, once, instead of
// role-string comparisons inside each handler.
func RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetPartyRole(r.Context())
			if !permissions.RoleAllows(role, capability) {
				Error(w, errors.Forbidden("role "+role+" may not "+capability))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetPartyID retrieves the acting party ID from context
func GetPartyID(ctx context.Context) string {
	if id, ok := ctx.Value(PartyIDKey).(string); ok {
		return id
	}
	return ""
}

// GetPartyEmail retrieves the acting party email from context
func GetPartyEmail(ctx context.Context) string {
	if email, ok := ctx.Value(PartyEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetPartyRole retrieves the acting party role from context
func GetPartyRole(ctx context.Context) string {
	if role, ok := ctx.Value(PartyRoleKey).(string); ok {
		return role
	}
	return ""
}

// WithPartyContext adds party information to the context
func WithPartyContext(ctx context.Context, partyID, email, role string) context.Context {
	ctx = context.WithValue(ctx, PartyIDKey, partyID)
	ctx = context.WithValue(ctx, PartyEmailKey, email)
	ctx = context.WithValue(ctx, PartyRoleKey, role)
	return ctx
}
