package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/civic-map-service/internal/domain"
	"github.com/couchcryptid/civic-map-service/internal/pipeline"
)

// Defaults for cluster mode when the request omits them.
const (
	DefaultEpsilonKm = 0.3
	DefaultMinPoints = 3
)

// ViewService is the rendering surface the HTTP API exposes.
type ViewService interface {
	sharedobs.ReadinessChecker
	Render(ctx context.Context, params domain.ViewParams) (domain.View, error)
	Tickets(ctx context.Context, params domain.FilterParams) ([]domain.Ticket, error)
	Options(ctx context.Context) (pipeline.FilterOptions, error)
}

// Server exposes the map API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	views      ViewService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /api/v1 map routes.
func NewServer(addr string, views ViewService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		views:  views,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(views))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/view", s.handleView)
	mux.HandleFunc("GET /api/v1/tickets", s.handleTickets)
	mux.HandleFunc("GET /api/v1/options", s.handleOptions)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	params, err := parseViewParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.views.Render(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

type ticketsResponse struct {
	Count   int             `json:"count"`
	Tickets []domain.Ticket `json:"tickets"`
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tickets, err := s.views.Tickets(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, ticketsResponse{Count: len(tickets), Tickets: tickets})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.views.Options(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, opts)
}

// writeError maps parameter errors to 400 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidParams) || errors.Is(err, domain.ErrInvalidClusterParams) {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func parseFilterParams(q url.Values) (domain.FilterParams, error) {
	params := domain.DefaultFilterParams()

	var err error
	if params.Start, err = parseDate(q, "start"); err != nil {
		return params, err
	}
	if params.End, err = parseDate(q, "end"); err != nil {
		return params, err
	}
	if v := q.Get("state"); v != "" {
		params.State = v
	}
	if v := q.Get("category"); v != "" {
		params.Category = v
	}
	if v := q.Get("district"); v != "" {
		params.District = v
	}
	return params, nil
}

func parseViewParams(q url.Values) (domain.ViewParams, error) {
	filter, err := parseFilterParams(q)
	if err != nil {
		return domain.ViewParams{}, err
	}
	mode, err := domain.ParseLayerKind(q.Get("mode"))
	if err != nil {
		return domain.ViewParams{}, err
	}
	style, err := domain.ParseMapStyle(q.Get("style"), "")
	if err != nil {
		return domain.ViewParams{}, err
	}

	params := domain.ViewParams{Filter: filter, Mode: mode, Style: style}
	if mode != domain.LayerCluster {
		return params, nil
	}

	params.Cluster = domain.ClusterParams{EpsilonKm: DefaultEpsilonKm, MinPoints: DefaultMinPoints}
	if v := q.Get("eps_km"); v != "" {
		eps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.ViewParams{}, fmt.Errorf("%w: eps_km %q is not a number", domain.ErrInvalidClusterParams, v)
		}
		params.Cluster.EpsilonKm = eps
	}
	if v := q.Get("min_points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ViewParams{}, fmt.Errorf("%w: min_points %q is not an integer", domain.ErrInvalidClusterParams, v)
		}
		params.Cluster.MinPoints = n
	}
	return params, nil
}

func parseDate(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", domain.ErrInvalidParams, key, v)
	}
	return d, nil
}
