// Package server exposes the research orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	contractx "github.com/chainquery/chainquery/agent/contract"
	orchestratorx "github.com/chainquery/chainquery/agent/orchestrator"
	sessionx "github.com/chainquery/chainquery/agent/session"
)

// Config controls the HTTP listener.
type Config struct {
	Host            string        `envconfig:"HOST" split_words:"true" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" split_words:"true" default:"8080"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" split_words:"true" default:"*"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
	Debug           bool          `envconfig:"DEBUG" split_words:"true" default:"false"`
}

// HealthReporter exposes per-provider availability for the health endpoint.
type HealthReporter interface {
	Services() map[string]string
}

type Server struct {
	cfg      Config
	research *orchestratorx.Service
	health   HealthReporter
	engine   *gin.Engine
}

func New(cfg Config, research *orchestratorx.Service, health HealthReporter) (*Server, error) {
	if research == nil {
		return nil, errors.New("research service is required")
	}
	if health == nil {
		return nil, errors.New("health reporter is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	engine.Use(cors.New(corsCfg))

	s := &Server{
		cfg:      cfg,
		research: research,
		health:   health,
		engine:   engine,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/research", s.handleResearch)
	api.GET("/conversation/:session_id", s.handleConversation)
	api.DELETE("/conversation/:session_id", s.handleDeleteConversation)
	api.GET("/sessions", s.handleSessions)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"services": s.health.Services(),
	})
}

type researchRequest struct {
	Query       string   `json:"query"`
	Address     string   `json:"address"`
	TimeRange   string   `json:"time_range"`
	SessionID   string   `json:"session_id"`
	DataSources []string `json:"data_sources"`
}

func (s *Server) handleResearch(c *gin.Context) {
	var body researchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	resp, err := s.research.Research(c.Request.Context(), orchestratorx.Request{
		Query:       body.Query,
		Address:     body.Address,
		TimeRange:   body.TimeRange,
		SessionID:   body.SessionID,
		DataSources: body.DataSources,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		// Anything else is total infrastructure failure; the details stay
		// in the log.
		log.Error().Err(err).Msg("research request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("session_id"))

	view, err := s.research.Sessions().Snapshot(id)
	if err != nil {
		if errors.Is(err, sessionx.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("conversation lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("session_id"))

	if err := s.research.Sessions().Delete(id); err != nil {
		if errors.Is(err, sessionx.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("conversation delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.research.Sessions().List()
	c.JSON(http.StatusOK, gin.H{
		"total":    len(sessions),
		"sessions": sessions,
	})
}
