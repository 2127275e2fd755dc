package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/djpki/ejbca-rest-gateway/internal/common"
	"github.com/djpki/ejbca-rest-gateway/internal/db"
)

const requestIDHeader = "X-Request-ID"

// requestID assigns every request a correlation identifier, echoed in the
// response headers and carried in the context for logging and audit rows.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), common.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(common.RequestIDKey).(string)
	return id
}

// logAndAudit logs every request on completion and records it in the
// audit store when one is configured.
func logAndAudit(logger common.Logger, store *db.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			logger.Infow("request completed",
				"requestID", requestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", duration.String(),
			)

			if store != nil {
				store.SaveRequest(&db.RequestLog{
					RequestID:  requestIDFrom(r.Context()),
					Method:     r.Method,
					Path:       r.URL.Path,
					Query:      r.URL.RawQuery,
					RemoteIP:   r.RemoteAddr,
					StatusCode: ww.Status(),
					DurationMS: duration.Milliseconds(),
				})
			}
		})
	}
}

// rateLimit bounds the request rate across all clients. A zero limit
// disables the middleware.
func rateLimit(perSecond int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), perSecond*2)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
