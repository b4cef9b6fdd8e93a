// Package http serves the Prometheus metrics and healthcheck endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config is the configuration for the http server.
type Config struct {
	GitRev    string
	StartTime time.Time
	Logger    logr.Logger
}

// Handler returns the mux with the /metrics and /healthcheck routes, wrapped
// with OpenTelemetry and request logging.
func (s *Config) Handler() http.Handler {
	if s.Logger.GetSink() == nil {
		s.Logger = logr.Discard()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle(otelFuncWrapper("/healthcheck", s.serveHealthchecker(s.GitRev, s.StartTime)))

	return &requestLogger{
		next:  otelhttp.NewHandler(mux, "labdhcp-http"),
		log:   s.Logger,
		quiet: map[string]bool{"/metrics": true},
	}
}

// ServeHTTP starts the http server and blocks until ctx is done or the
// listener fails.
func (s *Config) ServeHTTP(ctx context.Context, addr string) error {
	server := http.Server{
		Addr:    addr,
		Handler: s.Handler(),

		// Mitigate Slowloris attacks.
		ReadHeaderTimeout: 20 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Logger.Info("shutting down http server")
		_ = server.Shutdown(context.Background())
	}()
	if err := server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.Logger.Error(err, "listen and serve http")
		return err
	}

	return nil
}

func (s *Config) serveHealthchecker(rev string, start time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		res := struct {
			GitRev     string  `json:"git_rev"`
			Uptime     float64 `json:"uptime"`
			Goroutines int     `json:"goroutines"`
		}{
			GitRev:     rev,
			Uptime:     time.Since(start).Seconds(),
			Goroutines: runtime.NumGoroutine(),
		}
		if err := json.NewEncoder(w).Encode(&res); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			s.Logger.Error(err, "marshaling healthcheck json")
		}
	}
}

// otelFuncWrapper takes a route and an http handler function, wraps the function
// with otelhttp, and returns the route again and http.Handler all set for mux.Handle().
func otelFuncWrapper(route string, h func(w http.ResponseWriter, req *http.Request)) (string, http.Handler) {
	return route, otelhttp.WithRouteTag(route, http.HandlerFunc(h))
}
