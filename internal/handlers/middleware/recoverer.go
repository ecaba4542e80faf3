package middleware

import (
	"net/http"
	"runtime/debug"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recoverer recovers from panics in handlers, logs the panic with stack trace
// and responds 500 with JSON error
func Recoverer(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				l.Error(
					"request panic",
					"method", r.Method,
					"uri", r.RequestURI,
					"panic", p,
					"stack", string(debug.Stack()),
					"request_id", RequestIDFromContext(r.Context()),
				)

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"err":"Internal server error"}` + "\n"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
