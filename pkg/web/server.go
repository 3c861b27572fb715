// Package web serves the tour dashboard: a JSON status API, Prometheus
// metrics and WebSocket feeds for the status page and the robot's display.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-temitour/pkg/hub"
	"github.com/teslashibe/go-temitour/pkg/interrupt"
	"github.com/teslashibe/go-temitour/pkg/journal"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/tour"
)

// Sources are what the dashboard reports on. Any field may be nil.
type Sources struct {
	Tour       interface{ Status() tour.Status }
	View       interface{ Snapshot() perception.Snapshot }
	Interrupts interface{ Snapshot() interrupt.State }
	Display    interface{ Signals() tour.Signals }
	Bridge     interface{ Connected() bool }
	Runs       interface {
		RecentRuns(ctx context.Context, limit int) ([]journal.Run, error)
	}
}

// StatusView is the body of GET /api/status and of each /ws/status frame.
type StatusView struct {
	Time            string                  `json:"time"`
	Tour            tour.Status             `json:"tour"`
	Perception      perception.SnapshotView `json:"perception"`
	Interrupt       interrupt.State         `json:"interrupt"`
	Display         tour.Signals            `json:"display"`
	BridgeConnected bool                    `json:"bridge_connected"`
}

// Config holds server settings.
type Config struct {
	Addr string

	// StatusInterval is how often /ws/status clients get a fresh frame.
	StatusInterval time.Duration

	// StaticDir, when set, is served at /.
	StaticDir string

	Logger *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		StatusInterval: time.Second,
	}
}

// Server is the web dashboard server
type Server struct {
	app *fiber.App
	cfg Config
	src Sources
	log *slog.Logger

	// Hubs for websocket broadcast (thread-safe!)
	statusHub  *hub.Hub
	displayHub *hub.Hub
}

// NewServer creates a new web dashboard server
func NewServer(cfg Config, src Sources) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		src:        src,
		log:        logger.With("component", "web"),
		statusHub:  hub.New("status", hub.WithLogger(logger)),
		displayHub: hub.New("display", hub.WithLogger(logger), hub.WithGauge(metrics.DisplayClients)),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Temi Tour",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/display", s.handleDisplay)
	api.Get("/runs", s.handleRuns)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/display", websocket.New(s.handleDisplayWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.statusHub.Run(ctx) })
	g.Go(func() error { return s.displayHub.Run(ctx) })
	g.Go(func() error { return s.publishStatus(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.log.Warn("shutdown", "error", err)
		}
		return ctx.Err()
	})
	g.Go(func() error {
		s.log.Info("dashboard listening", "addr", s.cfg.Addr)
		if err := s.app.Listen(s.cfg.Addr); err != nil {
			return fmt.Errorf("web: listen %s: %w", s.cfg.Addr, err)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// publishStatus pushes a status frame on every tick.
func (s *Server) publishStatus(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.Status()); err != nil {
				s.log.Warn("status encode", "error", err)
			}
		}
	}
}

// PublishDisplay sends new display signals to every /ws/display client.
// It is the tour.SignalBoard change callback.
func (s *Server) PublishDisplay(sig tour.Signals) {
	if err := s.displayHub.BroadcastJSON(sig); err != nil {
		s.log.Warn("display encode", "error", err)
	}
}

// Status assembles the current status.
func (s *Server) Status() StatusView {
	v := StatusView{Time: time.Now().Format(time.RFC3339)}
	if s.src.Tour != nil {
		v.Tour = s.src.Tour.Status()
	}
	if s.src.View != nil {
		v.Perception = s.src.View.Snapshot().View()
	}
	if s.src.Interrupts != nil {
		v.Interrupt = s.src.Interrupts.Snapshot()
	}
	if s.src.Display != nil {
		v.Display = s.src.Display.Signals()
	}
	if s.src.Bridge != nil {
		v.BridgeConnected = s.src.Bridge.Connected()
	}
	return v
}
