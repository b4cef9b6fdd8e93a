package http

import (
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// requestLogger logs every request once its handler has returned. Paths in
// quiet, such as the Prometheus scrape target, are served without logging.
type requestLogger struct {
	next  http.Handler
	log   logr.Logger
	quiet map[string]bool
}

func (l *requestLogger) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	l.next.ServeHTTP(rec, req)
	if l.quiet[req.URL.Path] {
		return
	}

	kv := []any{"method", req.Method, "path", req.URL.Path, "client", remoteHost(req.RemoteAddr), "status", rec.Status(), "bytes", rec.written, "duration", time.Since(start)}
	if rec.Status() >= http.StatusInternalServerError {
		l.log.Error(nil, "request failed", kv...)
		return
	}
	l.log.Info("served request", kv...)
}

// statusRecorder remembers the first status code and counts the body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
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
	n, err := r.ResponseWriter.Write(b)
	r.written += n

	return n, err
}

// Status is the code sent to the client. A handler that never wrote
// anything still answered 200.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "?"
	}

	return host
}
