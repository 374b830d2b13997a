// Package api is the simulator's thin HTTP/WebSocket adapter: a REST
// read path over the state store, a single service-call mutation
// surface, clock control endpoints, a change-stream websocket, and a
// Prometheus metrics endpoint. Grounded on the teacher pack's chi-based
// HTTP servers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/registry"
	"github.com/myorg/homeiqsim/internal/state"
)

// Server is the HTTP/WebSocket adapter over a running kernel.
type Server struct {
	store    *state.Store
	clk      *clock.Clock
	registry *registry.Registry
	metrics  prometheus.Collector

	stream *streamHub
}

// NewServer constructs a Server over the given kernel components.
// metrics may be nil, in which case /metrics serves the default Prometheus
// registry.
func NewServer(store *state.Store, clk *clock.Clock, reg *registry.Registry, metrics prometheus.Collector) *Server {
	s := &Server{
		store:    store,
		clk:      clk,
		registry: reg,
		metrics:  metrics,
		stream:   newStreamHub(store),
	}
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/states", s.handleListStates)
	r.Get("/api/states/{id}", s.handleGetState)
	r.Get("/api/states/{id}/history", s.handleGetHistory)

	r.Post("/api/services/{domain}/{service}", s.handleCallService)

	r.Post("/api/clock/set_time", s.handleClockSetTime)
	r.Post("/api/clock/set_speed", s.handleClockSetSpeed)
	r.Post("/api/clock/pause", s.handleClockPause)
	r.Post("/api/clock/resume", s.handleClockResume)

	r.Get("/api/stream", s.stream.handleWebsocket)

	if s.metrics != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(s.metrics)
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
