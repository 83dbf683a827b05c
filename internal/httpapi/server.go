// Package httpapi provides the HTTP API for vibenavd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/model"
	"github.com/fyrsmithlabs/vibenavd/internal/pipeline"
	"github.com/fyrsmithlabs/vibenavd/internal/rag"
	"github.com/fyrsmithlabs/vibenavd/internal/scrape"
)

// locationsLimit caps the locations listing response.
const locationsLimit = 50

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the pipeline and the RAG engines over HTTP.
type Server struct {
	echo         *echo.Echo
	store        docstore.Store
	scraper      scrape.Scraper
	pipeline     *pipeline.Service
	conversation *rag.Conversation
	tourPlanner  *rag.TourPlanner
	logger       *zap.Logger
	config       *Config
}

// NewServer creates the HTTP server.
func NewServer(
	store docstore.Store,
	scraper scrape.Scraper,
	pipelineSvc *pipeline.Service,
	conversation *rag.Conversation,
	tourPlanner *rag.TourPlanner,
	logger *zap.Logger,
	cfg *Config,
) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if scraper == nil {
		return nil, fmt.Errorf("scraper cannot be nil")
	}
	if pipelineSvc == nil {
		return nil, fmt.Errorf("pipeline service cannot be nil")
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation engine cannot be nil")
	}
	if tourPlanner == nil {
		return nil, fmt.Errorf("tour planner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:         e,
		store:        store,
		scraper:      scraper,
		pipeline:     pipelineSvc,
		conversation: conversation,
		tourPlanner:  tourPlanner,
		logger:       logger,
		config:       cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1/vibes")
	v1.GET("/locations", s.handleLocations)
	v1.POST("/discover", s.handleDiscover)
	v1.POST("/reprocess", s.handleReprocess)
	v1.POST("/agent/chat", s.handleChat)
	v1.POST("/agent/tour", s.handleTour)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleLocations returns up to 50 stored locations for a city/category.
func (s *Server) handleLocations(c echo.Context) error {
	city := c.QueryParam("city")
	if city == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city query parameter is required")
	}
	category := c.QueryParam("category")

	locations, err := s.store.List(c.Request().Context(), docstore.Find{
		City:     city,
		Category: category,
		Limit:    locationsLimit,
	})
	if err != nil {
		s.logger.Error("listing locations failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list locations")
	}
	if locations == nil {
		locations = []*model.Location{}
	}

	return c.JSON(http.StatusOK, locations)
}

// DiscoverRequest is the request body for POST /api/v1/vibes/discover.
type DiscoverRequest struct {
	Query    string `json:"query"`
	City     string `json:"city"`
	Category string `json:"category"`
}

// DiscoverResponse acknowledges a started discovery run.
type DiscoverResponse struct {
	Status string `json:"status"`
}

// handleDiscover starts an asynchronous scrape-ingest-summarize-index run and
// returns immediately. The pipeline reports progress through logs and
// metrics, not through this response.
func (s *Server) handleDiscover(c echo.Context) error {
	var req DiscoverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" || req.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and city are required")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		results, err := s.scraper.Discover(ctx, req.Query, req.City, req.Category)
		if err != nil {
			s.logger.Error("discovery scrape failed", zap.String("query", req.Query), zap.Error(err))
			return
		}
		if _, err := s.pipeline.Ingest(ctx, results); err != nil {
			s.logger.Error("discovery ingest failed", zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, DiscoverResponse{Status: "discovery started"})
}

// ReprocessResponse acknowledges a started catch-up summarization run.
type ReprocessResponse struct {
	Status string `json:"status"`
}

// handleReprocess starts catch-up summarization over every location still
// lacking a vibe card.
func (s *Server) handleReprocess(c echo.Context) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := s.pipeline.SummarizeAllPending(ctx); err != nil {
			s.logger.Error("catch-up summarization failed", zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, ReprocessResponse{Status: "reprocess started"})
}

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /api/v1/vibes/agent/chat.
type ChatRequest struct {
	Query       string        `json:"query"`
	City        string        `json:"city"`
	Category    string        `json:"category"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// AgentResponse is the response body for the chat and tour endpoints.
type AgentResponse struct {
	Reply   string         `json:"reply"`
	Sources []rag.Evidence `json:"sources"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" || req.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and city are required")
	}

	history := make([]genai.Message, len(req.ChatHistory))
	for i, msg := range req.ChatHistory {
		history[i] = genai.Message{Role: msg.Role, Content: msg.Content}
	}

	result := s.conversation.Converse(c.Request().Context(), req.Query, req.City, req.Category, history)
	return c.JSON(http.StatusOK, AgentResponse{Reply: result.Reply, Sources: result.Sources})
}

// TourRequest is the request body for POST /api/v1/vibes/agent/tour.
type TourRequest struct {
	City     string   `json:"city"`
	VibeTags []string `json:"vibe_tags"`
}

func (s *Server) handleTour(c echo.Context) error {
	var req TourRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city is required")
	}
	if len(req.VibeTags) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one vibe tag is required")
	}

	result := s.tourPlanner.PlanTour(c.Request().Context(), req.City, req.VibeTags)
	return c.JSON(http.StatusOK, AgentResponse{Reply: result.Reply, Sources: result.Sources})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
