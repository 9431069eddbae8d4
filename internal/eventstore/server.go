package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/pkg/event"
	"github.com/nao1215/busgate/pkg/middleware"
)

// Server はイベントストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はイベントの永続化先。
	store *Store
	// logger はサーバーのロガー。
	logger *slog.Logger
	// now は現在時刻を返す関数。
	now func() time.Time
}

// NewServer は設定からイベントストアサーバーを生成する。
func NewServer(ctx context.Context, cfg *config.EventStore, logger *slog.Logger) (*Server, error) {
	store, err := OpenSQLite(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	return newServer(cfg.Port, store, logger), nil
}

// newServer はストアからサーバーを組み立てる。
func newServer(port string, store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Correlation())
	router.Use(middleware.RequestLogger(logger))

	s := &Server{
		router: router,
		port:   port,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	events := s.router.Group("/events")
	{
		// イベントの追記
		events.POST("", s.handleAppendEvent())
		// AggregateIDによるイベント取得
		events.GET("/aggregate/:aggregate_type/:aggregate_id", s.handleGetEventsByAggregate())
		// Aggregateの最新バージョン取得
		events.GET("/aggregate/:aggregate_type/:aggregate_id/version", s.handleGetLatestVersion())
		// イベントタイプによるイベント取得
		events.GET("/type/:event_type", s.handleGetEventsByType())
		// 日時指定によるイベント取得（クエリパラメータ: since）
		events.GET("/since", s.handleGetEventsSince())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "eventstore"})
	})
}

// appendEventRequest はイベント追記リクエストのボディ。
type appendEventRequest struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id" binding:"required"`
	AggregateType string          `json:"aggregate_type" binding:"required"`
	EventType     string          `json:"event_type" binding:"required"`
	Data          json.RawMessage `json:"data" binding:"required"`
	Version       int64           `json:"version" binding:"min=0"`
	CreatedAt     time.Time       `json:"created_at"`
}

// handleAppendEvent はイベントの追記を処理するハンドラを返す。
// id、created_at、versionが省略された場合はサーバー側で補う。
func (s *Server) handleAppendEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appendEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}
		ev := &event.Event{
			ID:            req.ID,
			AggregateID:   req.AggregateID,
			AggregateType: event.AggregateType(req.AggregateType),
			EventType:     event.Type(req.EventType),
			Data:          req.Data,
			Version:       req.Version,
			CreatedAt:     req.CreatedAt,
		}
		if err := event.CheckData(ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = s.now()
		}

		if err := s.store.Append(c.Request.Context(), ev); err != nil {
			switch {
			case errors.Is(err, ErrVersionConflict):
				c.JSON(http.StatusConflict, gin.H{"error": ErrVersionConflict.Error()})
				return
			case errors.Is(err, ErrDuplicateEvent):
				c.JSON(http.StatusConflict, gin.H{"error": ErrDuplicateEvent.Error()})
				return
			}
			s.logger.ErrorContext(c.Request.Context(), "イベントの追記に失敗", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの追記に失敗しました"})
			return
		}

		s.logger.InfoContext(c.Request.Context(), "イベントを追記しました",
			"event_type", ev.EventType,
			"aggregate_id", ev.AggregateID,
			"version", ev.Version,
		)
		c.JSON(http.StatusCreated, ev)
	}
}

// handleGetEventsByAggregate はAggregateによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByAggregate() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.store.ListByAggregate(c.Request.Context(),
			event.AggregateType(c.Param("aggregate_type")), c.Param("aggregate_id"))
		s.respondList(c, events, err)
	}
}

// handleGetLatestVersion はAggregateの最新バージョン取得を処理するハンドラを返す。
func (s *Server) handleGetLatestVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.store.LatestVersion(c.Request.Context(),
			event.AggregateType(c.Param("aggregate_type")), c.Param("aggregate_id"))
		if err != nil {
			s.logger.ErrorContext(c.Request.Context(), "最新バージョンの取得に失敗", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "最新バージョンの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

// handleGetEventsByType はイベントタイプによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByType() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := parseLimit(c)
		if !ok {
			return
		}
		events, err := s.store.ListByType(c.Request.Context(), event.Type(c.Param("event_type")), limit)
		s.respondList(c, events, err)
	}
}

// handleGetEventsSince は日時指定によるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsSince() gin.HandlerFunc {
	return func(c *gin.Context) {
		since, err := time.Parse(time.RFC3339, c.Query("since"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sinceはRFC3339形式で指定してください"})
			return
		}
		limit, ok := parseLimit(c)
		if !ok {
			return
		}
		events, err := s.store.ListSince(c.Request.Context(), since, limit)
		s.respondList(c, events, err)
	}
}

// respondList はイベント一覧のレスポンスを返す。
func (s *Server) respondList(c *gin.Context, events []*event.Event, err error) {
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "イベントの取得に失敗", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// parseLimit はクエリパラメータlimitを解釈する。不正な値なら400を返してfalseを返す。
func parseLimit(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return DefaultListLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
		return 0, false
	}
	return n, true
}
