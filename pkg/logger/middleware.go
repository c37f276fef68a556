package logger

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type annotationsKey struct{}

// annotations collects attributes a handler wants on its request line.
type annotations struct {
	mu    sync.Mutex
	attrs []any
}

// Annotate adds key/value pairs to the request log line written by
// Middleware. Outside a logged request it does nothing.
func Annotate(ctx context.Context, args ...any) {
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.attrs = append(a.attrs, args...)
	a.mu.Unlock()
}

// Middleware writes one line per request: the matched route, the outcome and
// whatever the handler attached with Annotate.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		notes := &annotations{}
		r = r.WithContext(context.WithValue(r.Context(), annotationsKey{}, notes))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		args := []any{
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"latency", time.Since(start),
		}
		if id := middleware.GetReqID(r.Context()); id != "" {
			args = append(args, "request_id", id)
		}
		notes.mu.Lock()
		args = append(args, notes.attrs...)
		notes.mu.Unlock()

		Log.Log(r.Context(), level, "🌐 request served", args...)
	})
}
