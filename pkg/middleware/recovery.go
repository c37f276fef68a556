package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"lozenge/pkg/fastjson"
)

// Recoverer turns a handler panic into a JSON 500. Stack traces are only
// exposed when env is development.
func Recoverer(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				stack := string(debug.Stack())
				slog.Error("🔥 PANIC RECOVERED",
					"error", rvr,
					"path", r.URL.Path,
					"method", r.Method,
				)

				body := map[string]interface{}{
					"success": false,
					"status":  http.StatusInternalServerError,
					"error":   "Internal Server Error",
				}
				if env == "development" {
					body["detail"] = fmt.Sprintf("%v", rvr)
					body["stack"] = stack
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				if err := fastjson.NewEncoder(w).Encode(body); err != nil {
					slog.Warn("failed to write panic response", "error", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
