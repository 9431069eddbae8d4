package gateway

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/pkg/middleware"
)

// EdgeForwarder はゲートウェイの入口でリクエストを転送用に整えるミドルウェア。
// 除外リストは起動後に変更されない。
type EdgeForwarder struct {
	// excluded はトークン変換を行わないパス接頭辞。
	excluded []string
	// sources はトークンを探す経路。ゲートウェイではCookieのみ。
	sources []middleware.CredentialSource
	// logger はリクエストを記録するロガー。
	logger *slog.Logger
}

// NewEdgeForwarder は除外パス接頭辞を指定してEdgeForwarderを生成する。
func NewEdgeForwarder(excluded []string, logger *slog.Logger) *EdgeForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgeForwarder{
		excluded: append([]string(nil), excluded...),
		sources:  []middleware.CredentialSource{middleware.Cookie(middleware.AccessTokenCookie)},
		logger:   logger,
	}
}

// Handler はGinミドルウェアを返す。
//
// 相関IDを確定させた後、除外パスでなければACCESS_TOKEN Cookieの値を
// Authorization: Bearer ヘッダーとして設定する。Cookieがあれば受信した
// Authorizationヘッダーは置き換え、無ければ受信したヘッダーのまま転送する。
// どの場合もリクエストを拒否しない。
func (f *EdgeForwarder) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.AttachCorrelationID(c)
		path := c.Request.URL.Path
		f.logger.InfoContext(c.Request.Context(), "incoming request",
			"method", c.Request.Method,
			"path", path,
		)

		if f.isExcluded(path) {
			f.logger.DebugContext(c.Request.Context(), "除外パスのため認証ヘッダーを変換しません", "path", path)
			c.Next()
			return
		}

		if tok, ok := middleware.ResolveCredential(c.Request, f.sources...); ok {
			c.Request.Header.Set(middleware.HeaderAuthorization, middleware.BearerPrefix+tok)
		} else {
			f.logger.DebugContext(c.Request.Context(), "ACCESS_TOKEN Cookieが無いため認証ヘッダーを変換しません", "path", path)
		}
		c.Next()
	}
}

// isExcluded はpathが除外リストのいずれかで始まるかを返す。
func (f *EdgeForwarder) isExcluded(path string) bool {
	for _, p := range f.excluded {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
