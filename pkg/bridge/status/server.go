// Package status exposes the bridge's read-only operational surface over
// HTTP: liveness of every configured endpoint, recent data-log samples,
// on-demand discovery previews, and a websocket stream of outbound publishes.
//
// The surface is deliberately read-only — configuration lives in the store
// and changes through it; this server only reports.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/supervisor"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

const (
	defaultListen      = ":8080"
	defaultSampleLimit = 100
	maxSampleLimit     = 1000
)

// Store is the slice of the persistence layer the server reads from.
type Store interface {
	RecentSamples(ctx context.Context, limit int) ([]models.Sample, error)
	SamplesForSource(ctx context.Context, sourceType string, sourceID uint, limit int) ([]models.Sample, error)
}

// Discovery holds the optional on-demand discovery callbacks. A nil func
// disables the corresponding endpoint. Results are returned to the caller,
// never persisted — persistence is the -discover flag's job.
type Discovery struct {
	EIP  func(ctx context.Context, deviceID uint) ([]models.EIPTag, error)
	SNMP func(ctx context.Context, deviceID uint) ([]models.SNMPObject, error)
}

// Config wires the server.
type Config struct {
	// Listen is the HTTP bind address (default ":8080").
	Listen string

	Store    Store
	Board    *supervisor.Board
	Discover Discovery
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Listen == "" {
		out.Listen = defaultListen
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// Server serves the status API and the live publish feed.
type Server struct {
	cfg    Config
	logger *slog.Logger
	hub    *Hub

	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
}

// New creates a Server with its routes registered. Store and Board are
// required; a nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg.withDefaults(),
		logger: logger,
		hub:    newHub(logger),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)
	api := r.Group("/api")
	{
		api.GET("/status", s.status)
		api.GET("/samples/recent", s.recentSamples)
		api.GET("/samples/:type/:id", s.sourceSamples)
		api.GET("/discover/:type/:id", s.discover)
		api.GET("/live", s.live)
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Observer returns a callback that feeds the live websocket stream; wire it
// into the polling engine and trap listener observer lists.
func (s *Server) Observer() func(models.PublishEvent) {
	return s.hub.Broadcast
}

// Hub exposes the live feed hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start binds the listen address and begins serving. The bind happens
// synchronously so configuration errors surface here; serving continues in
// the background until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.engine}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status: serve failed", "error", err.Error())
		}
	}()

	s.logger.Info("status: listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when Listen used port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Listen
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests and closes every live feed client.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.logger.Info("status: stopped")
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports the liveness board: every endpoint's state plus per-kind
// connected/total tallies.
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"endpoints": s.cfg.Board.Snapshot(),
		"counts":    s.cfg.Board.Counts(),
	})
}

func (s *Server) recentSamples(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	samples, err := s.cfg.Store.RecentSamples(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("status: recent samples failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if samples == nil {
		samples = []models.Sample{}
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

func (s *Server) sourceSamples(c *gin.Context) {
	kind, ok := sourceKind(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be ethernetip or snmp"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be numeric"})
		return
	}

	limit := parseLimit(c.Query("limit"))
	samples, err := s.cfg.Store.SamplesForSource(c.Request.Context(), kind, uint(id), limit)
	if err != nil {
		s.logger.Error("status: source samples failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if samples == nil {
		samples = []models.Sample{}
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

// discover runs a one-shot discovery against a live device and returns what
// it found without touching the store.
func (s *Server) discover(c *gin.Context) {
	kind, ok := sourceKind(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be ethernetip or snmp"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be numeric"})
		return
	}

	ctx := c.Request.Context()
	switch kind {
	case models.SourceEthernetIP:
		if s.cfg.Discover.EIP == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "discovery not available"})
			return
		}
		tags, err := s.cfg.Discover.EIP(ctx, uint(id))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"device_id": id, "count": len(tags), "points": tags})
	case models.SourceSNMP:
		if s.cfg.Discover.SNMP == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "discovery not available"})
			return
		}
		objects, err := s.cfg.Discover.SNMP(ctx, uint(id))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"device_id": id, "count": len(objects), "points": objects})
	}
}

func (s *Server) live(c *gin.Context) {
	s.hub.serve(c.Writer, c.Request)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func parseLimit(raw string) int {
	if raw == "" {
		return defaultSampleLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultSampleLimit
	}
	if n > maxSampleLimit {
		return maxSampleLimit
	}
	return n
}

func sourceKind(raw string) (string, bool) {
	switch raw {
	case models.SourceEthernetIP, models.SourceSNMP:
		return raw, true
	default:
		return "", false
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
