package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/auth"
	"github.com/dmitrijs2005/voicejournal/internal/server/models"
	"github.com/google/uuid"
)

// contextKey is unexported so only this package can read or write the
// request-scoped values it defines.
type contextKey string

const (
	claimsKey    contextKey = "claims"
	userKey      contextKey = "user"
	requestIDKey contextKey = "request_id"
)

// RequestIDFromContext returns the id RequestLogger assigned to the request,
// if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// ClaimsFromContext returns the verified identity claims, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// UserFromContext returns the resolved internal user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

// statusWriter captures the status code and byte count for request logging.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger assigns every request an id before any handler runs, echoes
// it in the X-Request-ID response header, stores it in the request context
// for downstream log lines, and logs the outcome under the same id.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r.WithContext(ctx))

			logger.Info(ctx, "request completed",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.written,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// Authenticate verifies the bearer credential and stores the claims in the
// request context. Requests without a valid token stop here with 401.
func Authenticate(verifier auth.Verifier, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeJSON(r.Context(), logger, w, http.StatusUnauthorized,
					ErrorResponse{Message: "Unauthorized"})
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeJSON(r.Context(), logger, w, http.StatusUnauthorized,
					ErrorResponse{Message: "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserResolver maps verified claims to an internal user account.
type UserResolver interface {
	GetOrCreate(ctx context.Context, externalID, email string) (*models.User, error)
}

// ResolveUser looks up (or lazily creates) the internal account for the
// authenticated subject and stores it in the request context. Must run
// after Authenticate.
func ResolveUser(users UserResolver, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSON(r.Context(), logger, w, http.StatusUnauthorized,
					ErrorResponse{Message: "Unauthorized"})
				return
			}

			user, err := users.GetOrCreate(r.Context(), claims.Subject, claims.Email)
			if err != nil {
				writeError(r.Context(), logger, w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
