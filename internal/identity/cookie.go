package identity

import (
	"net/http"

	"github.com/nao1215/busgate/pkg/middleware"
)

const (
	// accessCookieMaxAge はアクセストークンCookieの有効期間（秒）。
	accessCookieMaxAge = 900
	// refreshCookieMaxAge はリフレッシュトークンCookieの有効期間（秒）。
	refreshCookieMaxAge = 604800
)

// cookieWriter はトークンCookieの属性を揃えて書き込む。
type cookieWriter struct {
	// secure はSecure属性を付けるかどうか。trueならSameSite=None、falseならLax。
	secure bool
}

// newCookie は共通属性を持つCookieを生成する。
func (cw cookieWriter) newCookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if cw.secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cw.secure,
		SameSite: sameSite,
	}
}

// setAccess はアクセストークンCookieを設定する。
func (cw cookieWriter) setAccess(w http.ResponseWriter, tok string) {
	http.SetCookie(w, cw.newCookie(middleware.AccessTokenCookie, tok, accessCookieMaxAge))
}

// setRefresh はリフレッシュトークンCookieを設定する。
func (cw cookieWriter) setRefresh(w http.ResponseWriter, tok string) {
	http.SetCookie(w, cw.newCookie(middleware.RefreshTokenCookie, tok, refreshCookieMaxAge))
}

// clear は指定したCookieを削除する。
func (cw cookieWriter) clear(w http.ResponseWriter, name string) {
	// MaxAgeが負だとMax-Age=0が出力される
	http.SetCookie(w, cw.newCookie(name, "", -1))
}
