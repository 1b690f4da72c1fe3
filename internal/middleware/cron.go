package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const cronSecretHeader = "X-Cron-Secret"

// RequireCronSecret guards batch endpoints meant for an external scheduler.
// An empty secret leaves the endpoints open, which is only intended for
// development.
func RequireCronSecret(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next(w, r)
				return
			}

			submitted := r.Header.Get(cronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(submitted), []byte(secret)) != 1 {
				slog.Warn("cron secret mismatch", "ip", getClientIP(r), "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Invalid cron secret")
				return
			}

			next(w, r)
		}
	}
}
