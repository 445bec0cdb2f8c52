package server

// server.go wires the echo instance: routes, CORS, request logging,
// and the prometheus scrape endpoint

import (
	"context"
	"net/http"

	"github.com/iti/rngstream"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/teleng/callsim"
)

// Server bundles the HTTP surface with the engine pieces it fronts
type Server struct {
	cfg         *Config
	exp         *callsim.Experiment
	store       *callsim.SnapshotStore
	mgr         *callsim.SimulationManager
	hub         *Hub
	trafficRng  *rngstream.RngStream
	proxyClient *http.Client
	logger      zerolog.Logger
	echo        *echo.Echo
}

// New assembles the server and registers its routes
func New(cfg *Config, exp *callsim.Experiment, store *callsim.SnapshotStore,
	mgr *callsim.SimulationManager, hub *Hub, logger zerolog.Logger) *Server {

	s := &Server{
		cfg:         cfg,
		exp:         exp,
		store:       store,
		mgr:         mgr,
		hub:         hub,
		trafficRng:  rngstream.New("traffic-matrix"),
		proxyClient: newProxyClient(cfg.Proxy),
		logger:      logger,
		echo:        echo.New(),
	}
	s.echo.HideBanner = true

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		MaxAge:       3600,
	}))
	s.echo.Use(s.requestLogger())

	s.echo.POST("/api/analysis", s.RunAnalysis)
	s.echo.GET("/api/analysis", s.ListAnalyses)
	s.echo.GET("/api/analysis/:id", s.GetAnalysis)
	s.echo.DELETE("/api/analysis", s.ClearAnalyses)
	s.echo.DELETE("/api/analysis/:id", s.DeleteAnalysis)

	s.echo.POST("/api/simulation/:id/start", s.StartSimulation)
	s.echo.POST("/api/simulation/:id/stop", s.StopSimulation)
	s.echo.GET("/api/simulation/:id/metrics", s.SimulationMetrics)
	s.echo.GET("/api/simulation/:id/links", s.SimulationLinks)

	s.echo.GET("/api/topology/:id", s.GetTopology)

	s.echo.POST("/api/explain", s.ProxyExplain)

	if hub != nil {
		s.echo.GET("/ws", hub.Handle)
	}
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// requestLogger emits one structured log line per handled request
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			s.logger.Debug().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Msg("request")
			return err
		}
	}
}

// Start begins serving on the configured address, blocking until the
// listener fails or is shut down
func (s *Server) Start() error {
	return s.echo.Start(s.cfg.Addr())
}

// Shutdown drains the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
