package gateway

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/pkg/httpclient"
	"github.com/nao1215/busgate/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// proxy はルートテーブルに従う転送処理。
	proxy *Proxy
}

// NewServer は設定からGatewayサーバーを生成する。
func NewServer(cfg *config.Gateway, logger *slog.Logger) *Server {
	return newServer(cfg, logger)
}

// newServer はサーバーを組み立てる。テストではoptsで転送先クライアントを差し替える。
func newServer(cfg *config.Gateway, logger *slog.Logger, opts ...httpclient.Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(NewEdgeForwarder(cfg.ExcludedPaths, logger).Handler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router: router,
		port:   cfg.Port,
		proxy:  NewProxy(cfg.Routes, logger, opts...),
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

// setupRoutes はルーティングを設定する。/health以外はすべてルートテーブルで転送する。
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.NoRoute(s.proxy.Handler())
}
