package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/pkg/event"
	"github.com/nao1215/busgate/pkg/httpclient"
	"github.com/nao1215/busgate/pkg/middleware"
	"github.com/nao1215/busgate/pkg/token"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// auth は認証サービスの操作。
	auth Authenticator
	// cookies はトークンCookieの書き込み設定。
	cookies cookieWriter
	// logger はサーバーのロガー。
	logger *slog.Logger
	// closer は終了時に解放するリソース。
	closer func() error
	// ping はヘルスチェックで使うデータベースの疎通確認。
	ping func(ctx context.Context) error
}

// Deps はServerの構築に必要な依存。
type Deps struct {
	// Auth は認証サービスの操作。
	Auth Authenticator
	// Verifier はリクエストのトークン検証に使うコーデック。
	Verifier middleware.TokenVerifier
	// Loader はトークン主体のロール解決。
	Loader middleware.IdentityLoader
	// Logger はロガー。
	Logger *slog.Logger
	// CookieSecure はCookieにSecure属性を付けるかどうか。
	CookieSecure bool
	// ExcludedPrefixes はトークン検証を行わないパス接頭辞。
	ExcludedPrefixes []string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Ping はヘルスチェックで呼ぶ疎通確認。nilなら常に正常とみなす。
	Ping func(ctx context.Context) error
}

// NewServer は設定から認証サービスのサーバーを生成する。
// データベースの初期化に失敗した場合はエラーを返す。
func NewServer(ctx context.Context, cfg *config.Identity, logger *slog.Logger) (*Server, error) {
	store, err := OpenSQLite(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	codec := token.NewCodec(cfg.Key(), token.WithTTL(cfg.AccessTTL, cfg.RefreshTTL))

	var publisher event.Publisher = event.NopPublisher{}
	if cfg.EventSinkURL != "" {
		publisher = event.NewHTTPPublisher(httpclient.New(cfg.EventSinkURL, httpclient.WithTimeout(5*time.Second)))
	}

	svc, err := NewService(store, NewBcryptHasher(0), codec, publisher, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("認証サービスの初期化に失敗: %w", err)
	}

	s := newServer(cfg.Port, Deps{
		Auth:             NewLoggingAuthenticator(svc, logger),
		Verifier:         codec,
		Loader:           svc.LoadRole,
		Logger:           logger,
		CookieSecure:     cfg.CookieSecure,
		ExcludedPrefixes: cfg.ExcludedPrefixes,
		AllowedOrigins:   []string{cfg.FrontendURL},
		Ping:             store.Ping,
	})
	s.closer = store.Close
	return s, nil
}

// newServer は依存からサーバーを組み立てる。
func newServer(port string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Correlation())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.Authenticate(deps.Verifier, middleware.AuthConfig{
		ExcludedPrefixes: deps.ExcludedPrefixes,
		Loader:           deps.Loader,
		Logger:           logger,
	}))

	s := &Server{
		router:  router,
		port:    port,
		auth:    deps.Auth,
		cookies: cookieWriter{secure: deps.CookieSecure},
		logger:  logger,
		ping:    deps.Ping,
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

// Close はサーバーが保持するリソースを解放する。
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.POST("/login", s.handleLogin())
		auth.POST("/register", s.handleRegister())
		auth.GET("/profile", middleware.RequireAuth(), s.handleProfile())
		auth.POST("/logout", s.handleLogout())
		auth.GET("/validate", s.handleValidate())
		auth.POST("/refresh", s.handleRefresh())
	}

	s.router.GET("/health", s.handleHealth())
}

// handleHealth はヘルスチェックのハンドラを返す。データベースに届かなければ503を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ping != nil {
			if err := s.ping(c.Request.Context()); err != nil {
				s.logger.ErrorContext(c.Request.Context(), "データベースの疎通確認に失敗", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "identity"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "identity"})
	}
}

// loginRequest はログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin はログインを処理するハンドラを返す。
// 成功するとアクセストークンとリフレッシュトークンをCookieに設定する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			s.respondError(c, err)
			return
		}

		s.cookies.setAccess(c.Writer, res.AccessToken)
		s.cookies.setRefresh(c.Writer, res.RefreshToken)
		c.JSON(http.StatusOK, gin.H{
			"token":    res.AccessToken,
			"id":       res.User.ID,
			"username": res.User.Username,
			"email":    res.User.Email,
			"role":     res.User.Role,
		})
	}
}

// registerRequest はアカウント登録のリクエストボディ。
type registerRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	Phone    *string `json:"phone"`
	Age      *int    `json:"age" binding:"omitempty,min=0"`
}

// handleRegister はアカウント登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		u, err := s.auth.Register(c.Request.Context(), RegisterInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
			Age:      req.Age,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "User registered successfully",
			"email":    u.Email,
			"username": u.Username,
		})
	}
}

// profileResponse はプロフィールのレスポンス。
type profileResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Age       *int      `json:"age"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// handleProfile は認証済みアカウントのプロフィールを返すハンドラを返す。
func (s *Server) handleProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.auth.LookupByEmail(c.Request.Context(), middleware.GetSubject(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profileResponse{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Phone:     u.Phone,
			Age:       u.Age,
			Role:      u.Role,
			IsActive:  u.IsActive,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		})
	}
}

// handleLogout はトークンCookieを削除するハンドラを返す。サーバー側の状態は変更しない。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.cookies.clear(c.Writer, middleware.AccessTokenCookie)
		s.cookies.clear(c.Writer, middleware.RefreshTokenCookie)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Logged out successfully",
		})
	}
}

// handleValidate は他サービス向けにトークンを検査するハンドラを返す。
// 結果は常に200で返し、validフィールドで有効かどうかを示す。
func (s *Server) handleValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, found := middleware.ResolveCredential(c.Request,
			middleware.BearerHeader(), middleware.Cookie(middleware.AccessTokenCookie))
		if !found {
			c.JSON(http.StatusOK, gin.H{"valid": false, "message": "No token provided"})
			return
		}

		u, err := s.auth.ValidateToken(c.Request.Context(), tok)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"valid": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":    true,
			"email":    u.Email,
			"username": u.Username,
			"role":     u.Role,
		})
	}
}

// handleRefresh はリフレッシュトークンCookieからアクセストークンを再発行するハンドラを返す。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		refresh, found := middleware.ResolveCredential(c.Request, middleware.Cookie(middleware.RefreshTokenCookie))
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンがありません"})
			return
		}

		access, err := s.auth.Refresh(c.Request.Context(), refresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンが無効です"})
			return
		}

		s.cookies.setAccess(c.Writer, access)
		c.JSON(http.StatusOK, gin.H{"token": access})
	}
}

// respondError はエラーの種類に応じたステータスコードでエラーレスポンスを返す。
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
	case errors.Is(err, ErrInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrInactive.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrPasswordTooLong.Error()})
	default:
		s.logger.ErrorContext(c.Request.Context(), "リクエスト処理に失敗", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}
