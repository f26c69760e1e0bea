package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openmined/photoframe/internal/controlplane/middleware"
)

type Server struct {
	config *Config
	server *http.Server
}

func NewServer(config *Config, svc PhotoService, registry *prometheus.Registry) (*Server, error) {
	routes, err := SetupRoutes(&RouteConfig{
		Auth:        middleware.TokenAuthConfig{Token: config.AuthToken},
		RateLimit:   config.RateLimit,
		CORSOrigins: config.CORSOrigins,
		Handler:     NewPhotosHandler(svc, config.CacheLife),
		Registry:    registry,
	})
	if err != nil {
		return nil, fmt.Errorf("control plane routes: %w", err)
	}

	httpServer := &http.Server{
		Addr:    config.Addr,
		Handler: routes,
		// no WriteTimeout: sync and event streams are long lived
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	return &Server{
		config: config,
		server: httpServer,
	}, nil
}

// Start serves until Stop is called. The listener is bound before returning
// errors so a busy port fails fast.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen: %w", err)
	}

	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()))
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control plane serve: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
