package config

import (
	"strings"
	"time"

	"github.com/nao1215/busgate/pkg/middleware"
	"github.com/nao1215/busgate/pkg/token"
)

// Identity は認証サービスの設定。
type Identity struct {
	Common
	// JWTSecret はトークン署名鍵の元になる秘密値。必須。
	JWTSecret string
	// AccessTTL はアクセストークンの有効期間。
	AccessTTL time.Duration
	// RefreshTTL はリフレッシュトークンの有効期間。
	RefreshTTL time.Duration
	// CookieSecure はCookieにSecure属性を付けるかどうか。
	CookieSecure bool
	// DBPath はSQLiteデータベースのパス。
	DBPath string
	// ExcludedPrefixes はトークン検証を行わないパス接頭辞。
	ExcludedPrefixes []string
	// EventSinkURL はイベント受信先のベースURL。空ならイベントは送信しない。
	EventSinkURL string
}

// Key は秘密値から署名鍵を導出する。
func (c *Identity) Key() token.Key {
	return token.DeriveKey(c.JWTSecret)
}

// LoadIdentity は認証サービスの設定を読み込む。JWT_SECRETが無い場合はErrMissingSecretを返す。
func LoadIdentity(lookup Lookup) (*Identity, error) {
	secret := getOr(lookup, "JWT_SECRET", "")
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	access, err := getMillis(lookup, "JWT_ACCESS_EXPIRATION", token.DefaultAccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := getMillis(lookup, "JWT_REFRESH_EXPIRATION", token.DefaultRefreshTTL)
	if err != nil {
		return nil, err
	}
	secure, err := getBool(lookup, "COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Common:           loadCommon(lookup, "8081"),
		JWTSecret:        secret,
		AccessTTL:        access,
		RefreshTTL:       refresh,
		CookieSecure:     secure,
		DBPath:           getOr(lookup, "IDENTITY_DB_PATH", "/data/identity.db"),
		ExcludedPrefixes: getList(lookup, "AUTH_EXCLUDED_PREFIXES", middleware.DefaultExcludedPrefixes),
		EventSinkURL:     getOr(lookup, "EVENT_SINK_URL", ""),
	}, nil
}
