// Package idempotency replays the stored response of a POST request when the
// client repeats it with the same X-Idempotency-Key. It only protects against
// client retries: two requests racing with the same key may both execute.
package idempotency

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/identity"
)

const (
	HeaderKey      = "X-Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	DefaultTTL     = 24 * time.Hour
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Middleware is a no-op when cache is nil. Cache failures are logged and the
// request proceeds without replay protection. Server errors are not stored.
// The key is scoped to the request path with any of mountPrefixes removed,
// so one resource reached through several mounts shares its keys.
func Middleware(cache Cache, ttl time.Duration, logger *slog.Logger, mountPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cache == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(HeaderKey))
			if clientKey == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			userID, _ := identity.UserFrom(r.Context())
			key := userID + ":" + canonicalPath(r.URL.Path, mountPrefixes) + ":" + clientKey

			cached, err := cache.Get(r.Context(), key)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to read idempotency cache", "error", err)
			}
			if cached != "" {
				var resp storedResponse
				if err := json.Unmarshal([]byte(cached), &resp); err == nil {
					if resp.ContentType != "" {
						w.Header().Set("Content-Type", resp.ContentType)
					}
					w.Header().Set(HeaderReplayed, "true")
					w.WriteHeader(resp.Status)
					_, _ = w.Write(resp.Body)
					logger.InfoContext(r.Context(), "idempotent response replayed", "path", r.URL.Path)
					return
				}
				logger.ErrorContext(r.Context(), "discarding corrupt idempotency entry", "error", err)
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				return
			}
			data, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode idempotent response", "error", err)
				return
			}
			if err := cache.Set(r.Context(), key, string(data), ttl); err != nil {
				logger.ErrorContext(r.Context(), "failed to store idempotent response", "error", err)
			}
		})
	}
}

func canonicalPath(path string, prefixes []string) string {
	for _, prefix := range prefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(path, prefix); ok && strings.HasPrefix(rest, "/") {
			return rest
		}
	}
	return path
}
