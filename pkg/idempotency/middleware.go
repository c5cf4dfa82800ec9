package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

const Header = "Idempotency-Key"

func HTTPKey(method, path, key string) string {
	return fmt.Sprintf("idem:http:%s:%s:%s", method, path, key)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Middleware rejects a request with 409 when its Idempotency-Key was already
// used for the same method and path by a request that succeeded or is still
// running. A key whose request ended with a non-2xx status is released, so
// the client can retry with it. Requests without the header pass through,
// and so do requests when the checker errors.
func Middleware(c Checker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			k := HTTPKey(r.Method, r.URL.Path, key)
			seen, err := c.Seen(r.Context(), k)
			if err != nil {
				log.Error("idempotency check failed", "key", k, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				log.Info("duplicate request rejected", "key", k)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate request"}`))
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 || (rec.status >= 200 && rec.status < 300) {
				return
			}
			if err := c.Forget(context.WithoutCancel(r.Context()), k); err != nil {
				log.Error("idempotency release failed", "key", k, "err", err)
			}
		})
	}
}
