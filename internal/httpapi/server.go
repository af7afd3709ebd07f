package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/jd-d/ai-monitor/internal/db"
	"github.com/jd-d/ai-monitor/internal/event"
	"github.com/jd-d/ai-monitor/internal/ingest"
	"github.com/jd-d/ai-monitor/internal/render"
)

const (
	defaultPageSize  = 25
	maxPageSize      = 200
	maxPacketBodyLen = 1 << 20
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	IngestTokenHash string
	AllowedOrigins  []string
}

type Server struct {
	pool   *db.Pool
	svc    *ingest.Service
	logger zerolog.Logger
	opts   Options
}

type eventListItem struct {
	Fingerprint         string    `json:"fingerprint"`
	Cluster             string    `json:"cluster"`
	EventType           string    `json:"event_type"`
	Title               string    `json:"title"`
	CanonicalSource     string    `json:"canonical_source"`
	SourceCount         int       `json:"source_count"`
	UpdateCount         int       `json:"update_count"`
	Score               float64   `json:"score"`
	SustainabilityIndex float64   `json:"sustainability_index"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type eventListResponse struct {
	Events   []eventListItem `json:"events"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Total    int             `json:"total"`
}

type ingestResponse struct {
	Fingerprint   string  `json:"fingerprint"`
	Decision      string  `json:"decision"`
	MatchScore    float64 `json:"match_score,omitempty"`
	TitleLanguage string  `json:"title_language,omitempty"`
}

func NewServer(pool *db.Pool, svc *ingest.Service, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8091
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		pool:   pool,
		svc:    svc,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			IngestTokenHash: opts.IngestTokenHash,
			AllowedOrigins:  origins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil || s.svc == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/events", s.handleEvents)
	api.GET("/events/:fingerprint", s.handleEventDetail)
	api.GET("/events/:fingerprint/history", s.handleEventHistory)
	api.POST("/packets", s.handlePacketIngest, s.requireIngestToken)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("event ledger API started")

	if err := e.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	var one int
	if err := s.pool.QueryRow(c.Request().Context(), "SELECT 1").Scan(&one); err != nil {
		s.logger.Error().Err(err).Msg("health check query failed")
		return internalError(c, "database unreachable")
	}
	return success(c, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.pool.LoadStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("stats query failed")
		return internalError(c, "failed to load stats")
	}
	return success(c, map[string]any{
		"events":           stats.Events,
		"packet_arrivals":  stats.PacketArrivals,
		"decisions":        stats.Decisions,
		"last_received_at": stats.LastReceivedAt,
		"last_updated_at":  stats.LastUpdatedAt,
	})
}

func (s *Server) handleEvents(c echo.Context) error {
	cluster := strings.TrimSpace(c.QueryParam("cluster"))
	eventType := strings.TrimSpace(c.QueryParam("event_type"))
	page := parsePositiveInt(c.QueryParam("page"), 1)
	pageSize := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	snapshots := s.svc.SnapshotList(cluster, eventType)
	total := len(snapshots)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]eventListItem, 0, end-start)
	for _, snapshot := range snapshots[start:end] {
		items = append(items, eventListItem{
			Fingerprint:         string(snapshot.Fingerprint),
			Cluster:             snapshot.Cluster,
			EventType:           snapshot.EventType,
			Title:               snapshot.Title,
			CanonicalSource:     snapshot.CanonicalSource,
			SourceCount:         len(snapshot.Sources),
			UpdateCount:         len(snapshot.History),
			Score:               snapshot.Score,
			SustainabilityIndex: snapshot.SustainabilityIndex,
			CreatedAt:           snapshot.CreatedAt,
			UpdatedAt:           snapshot.UpdatedAt,
		})
	}

	return success(c, eventListResponse{
		Events:   items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

func (s *Server) handleEventDetail(c echo.Context) error {
	snapshot, ok := s.snapshotParam(c)
	if !ok {
		return failNotFound(c, "event not found")
	}
	return success(c, snapshot)
}

func (s *Server) handleEventHistory(c echo.Context) error {
	snapshot, ok := s.snapshotParam(c)
	if !ok {
		return failNotFound(c, "event not found")
	}
	return c.HTML(http.StatusOK, render.ArticleHistorySection(&snapshot))
}

func (s *Server) handlePacketIngest(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPacketBodyLen+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}
	if len(body) == 0 {
		return fail(c, http.StatusBadRequest, "Request body is empty", nil)
	}
	if len(body) > maxPacketBodyLen {
		return fail(c, http.StatusRequestEntityTooLarge, "Packet body too large", nil)
	}

	result, err := s.svc.IngestOne(c.Request().Context(), body)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	response := ingestResponse{
		Fingerprint:   string(result.Fingerprint),
		Decision:      result.Decision,
		MatchScore:    result.MatchScore,
		TitleLanguage: result.TitleLanguage,
	}
	if result.Decision == ingest.DecisionCreated {
		return successWithStatus(c, http.StatusCreated, response)
	}
	return success(c, response)
}

func (s *Server) snapshotParam(c echo.Context) (event.Event, bool) {
	fingerprint := strings.TrimSpace(c.Param("fingerprint"))
	if fingerprint == "" {
		return event.Event{}, false
	}
	return s.svc.Snapshot(event.Fingerprint(fingerprint))
}

func parsePositiveInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
