// Package api exposes the SurveyPipe HTTP surface: session lifecycle,
// per-turn messages, session inspection, and survey management.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/BTreeMap/SurveyPipe/internal/registry"
	"github.com/BTreeMap/SurveyPipe/internal/survey"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// QuestionReviewer vets outgoing question text before a custom survey is
// registered. Implemented by the genai client's moderation-endpoint check.
type QuestionReviewer interface {
	ReviewQuestion(ctx context.Context, questionText string) (bool, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr   string
	routes []extraRoute
}

type extraRoute struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRoute mounts an additional handler on the router, such as a
// messaging provider's inbound webhook.
func WithRoute(method, path string, handler http.HandlerFunc) Option {
	return func(o *Opts) {
		o.routes = append(o.routes, extraRoute{method: method, path: path, handler: handler})
	}
}

// Server wires the survey engine and registry into HTTP handlers.
type Server struct {
	engine   *survey.Engine
	registry *registry.Registry
	reviewer QuestionReviewer
	addr     string
	routes   []extraRoute
}

// NewServer creates an API server. The reviewer may be nil, in which case
// custom surveys are registered without a safety review.
func NewServer(engine *survey.Engine, reg *registry.Registry, reviewer QuestionReviewer, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		engine:   engine,
		registry: reg,
		reviewer: reviewer,
		addr:     cfg.Addr,
		routes:   cfg.routes,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sessions", s.createSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/messages", s.postMessageHandler).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	r.HandleFunc("/surveys", s.listSurveysHandler).Methods(http.MethodGet)
	r.HandleFunc("/surveys", s.registerSurveyHandler).Methods(http.MethodPost)
	for _, route := range s.routes {
		r.HandleFunc(route.path, route.handler).Methods(route.method)
	}
	return r
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: SurveyPipe API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	}
}
