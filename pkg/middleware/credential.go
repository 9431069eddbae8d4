package middleware

import (
	"net/http"
	"strings"
)

const (
	// HeaderAuthorization は認証情報を運ぶHTTPヘッダー。
	HeaderAuthorization = "Authorization"
	// BearerPrefix はAuthorizationヘッダーのBearerスキーム接頭辞。
	BearerPrefix = "Bearer "
	// AccessTokenCookie はアクセストークンを保持するCookie名。
	AccessTokenCookie = "ACCESS_TOKEN"
	// RefreshTokenCookie はリフレッシュトークンを保持するCookie名。
	RefreshTokenCookie = "REFRESH_TOKEN"
)

// CredentialSource はリクエストからトークンを1つの経路で取り出す関数。
// 見つからなければ ok=false を返す。
type CredentialSource func(r *http.Request) (token string, ok bool)

// BearerHeader は "Authorization: Bearer <token>" からトークンを取り出すソースを返す。
// "Bearer " の後が空の場合はヘッダーが無いものとして扱い、ResolveCredentialは次のソースを試す。
func BearerHeader() CredentialSource {
	return func(r *http.Request) (string, bool) {
		tok, found := strings.CutPrefix(r.Header.Get(HeaderAuthorization), BearerPrefix)
		if !found || tok == "" {
			return "", false
		}
		return tok, true
	}
}

// Cookie は指定された名前のCookieからトークンを取り出すソースを返す。
func Cookie(name string) CredentialSource {
	return func(r *http.Request) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}

// ResolveCredential はsourcesを先頭から順に試し、最初に見つかったトークンを返す。
// 空のトークンは見つからなかったものとみなす。
// ゲートウェイ（Cookieのみ）と各サービス（ヘッダー→Cookie）が同じ解決ロジックを共有する。
func ResolveCredential(r *http.Request, sources ...CredentialSource) (string, bool) {
	for _, src := range sources {
		if tok, ok := src(r); ok {
			return tok, true
		}
	}
	return "", false
}
