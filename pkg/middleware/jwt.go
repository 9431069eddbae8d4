package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/pkg/token"
)

// contextKeyIdentity はGinコンテキストにIdentityを格納するキー。
const contextKeyIdentity = "identity"

// DefaultExcludedPrefixes はトークン検証を行わない静的リソースのパス接頭辞。
var DefaultExcludedPrefixes = []string{"/uploads/", "/static/", "/assets/"}

// TokenVerifier はトークンを検証してクレームを返す。token.Codecが実装する。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// IdentityLoader はsubjectからアカウントのロール文字列を解決する。
// アカウントが存在しない場合はエラーを返す。
type IdentityLoader func(ctx context.Context, subject string) (role string, err error)

// AuthConfig はAuthenticateミドルウェアの設定。
type AuthConfig struct {
	// ExcludedPrefixes はトークン検証を行わないパス接頭辞。nilならDefaultExcludedPrefixes。
	ExcludedPrefixes []string
	// CookieName はヘッダーが無い場合に参照するCookie名。空ならAccessTokenCookie。
	CookieName string
	// Loader はsubjectからロールを解決する。nilの場合はすべてRoleUserとして扱う。
	Loader IdentityLoader
	// Logger は検証失敗などを記録するロガー。nilならslog.Default()。
	Logger *slog.Logger
}

// Authenticate は各バックエンドサービスの入口でトークンを検証するGinミドルウェアを返す。
//
// Authorizationヘッダー、次にCookieの順でトークンを探し、検証に成功すれば
// Identityをコンテキストに設定する。トークンが無い場合や無効な場合でも
// リクエストは拒否せず、未認証のまま次へ進める。認証が必須かどうかは
// 各ルートでRequireAuthを使って判断する。
func Authenticate(verifier TokenVerifier, cfg AuthConfig) gin.HandlerFunc {
	excluded := cfg.ExcludedPrefixes
	if excluded == nil {
		excluded = DefaultExcludedPrefixes
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = AccessTokenCookie
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sources := []CredentialSource{BearerHeader(), Cookie(cookieName)}

	return func(c *gin.Context) {
		if hasAnyPrefix(c.Request.URL.Path, excluded) {
			c.Next()
			return
		}

		tok, found := ResolveCredential(c.Request, sources...)
		if !found {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		claims, err := verifier.Verify(tok)
		if err != nil {
			logger.DebugContext(ctx, "トークン検証に失敗", "error", err)
			c.Next()
			return
		}

		role := RoleUser
		if cfg.Loader != nil {
			stored, err := cfg.Loader(ctx, claims.Subject)
			if err != nil {
				logger.WarnContext(ctx, "トークンの主体を解決できません", "subject", claims.Subject, "error", err)
				c.Next()
				return
			}
			role = ParseRole(stored)
		}

		id := &Identity{
			Subject:     claims.Subject,
			Role:        role,
			Authorities: role.Authorities(),
		}
		c.Set(contextKeyIdentity, id)
		c.Request = c.Request.WithContext(WithIdentity(ctx, id))
		c.Next()
	}
}

// RequireAuth はIdentityが無いリクエストを401で拒否するGinミドルウェアを返す。
// Authenticateの後段に置く。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetIdentity(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です",
			})
			return
		}
		c.Next()
	}
}

// RequireRole は指定したロールを持たないリクエストを403で拒否するGinミドルウェアを返す。
// 未認証の場合は401を返す。
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です",
			})
			return
		}
		if id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "権限がありません",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity はGinコンテキストからIdentityを取得する。未認証ならnilを返す。
func GetIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

// GetSubject はGinコンテキストから認証済みの主体を取得する。未認証なら空文字列を返す。
func GetSubject(c *gin.Context) string {
	if id := GetIdentity(c); id != nil {
		return id.Subject
	}
	return ""
}

// hasAnyPrefix はpathがprefixesのいずれかで始まるかを返す。
func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
