package httpserver

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/uistack/comp-vs/internal/config"
	"github.com/uistack/comp-vs/internal/service"
)

// Server wraps the HTTP server configuration and dependencies.
type Server struct {
	addr    string
	handler http.Handler
	log     *zap.Logger
}

// NewServer creates an HTTP server with routes and middleware.
func NewServer(ctx context.Context, log *zap.Logger) (*Server, error) {
	cfg := config.Load()

	svc, err := service.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/api/v1/", service.Handler(svc))
	mux.Handle("/swagger/", service.Handler(svc))

	return &Server{addr: cfg.APIAddr, handler: mux, log: log}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run() error {
	s.log.Info("listening", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, s.handler)
}
