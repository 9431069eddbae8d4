package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL はアクセストークンの既定の有効期間（90000000ミリ秒）。
	DefaultAccessTTL = 90000000 * time.Millisecond
	// DefaultRefreshTTL はリフレッシュトークンの既定の有効期間（604800000ミリ秒）。
	DefaultRefreshTTL = 604800000 * time.Millisecond
)

// ErrInvalidToken はトークンの署名不一致、形式不正、期限切れのいずれかを表す。
var ErrInvalidToken = errors.New("トークンが無効です")

// Claims は検証済みトークンから取り出したクレーム。
type Claims struct {
	// Subject はトークンの主体。アカウントのメールアドレス。
	Subject string
	// IssuedAt はトークンの発行日時。
	IssuedAt time.Time
	// ExpiresAt はトークンの有効期限。この時刻以降は無効。
	ExpiresAt time.Time
}

// Codec はトークンの発行と検証を行う。
// 生成後は不変であり、複数のgoroutineから同時に呼び出してよい。
type Codec struct {
	// key は署名鍵。
	key []byte
	// accessTTL はアクセストークンの有効期間。
	accessTTL time.Duration
	// refreshTTL はリフレッシュトークンの有効期間。
	refreshTTL time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// Option はCodecの設定を変更する関数。
type Option func(*Codec)

// WithClock は現在時刻の取得方法を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithTTL はアクセストークンとリフレッシュトークンの有効期間を設定する。
// 0以下の値は既定値のまま扱う。
func WithTTL(access, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// NewCodec は指定された署名鍵でCodecを生成する。
func NewCodec(key Key, opts ...Option) *Codec {
	c := &Codec{
		key:        key.Bytes(),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessTTL はアクセストークンの有効期間を返す。
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// RefreshTTL はリフレッシュトークンの有効期間を返す。
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// Issue はsubjectに対してttlの有効期間を持つトークンを発行する。
// JWTの日時は秒単位のため、発行日時は秒に切り捨て、ttlは秒に切り上げる。
// 検証結果のIssuedAt+ttlは常にExpiresAtと一致する。
func (c *Codec) Issue(subject string, ttl time.Duration) (string, error) {
	issuedAt := c.now().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ceilSecond(ttl))),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ceilSecond はdを秒単位に切り上げる。
func ceilSecond(d time.Duration) time.Duration {
	if r := d % time.Second; r > 0 {
		return d - r + time.Second
	}
	return d
}

// IssueAccess はアクセストークンを発行する。
func (c *Codec) IssueAccess(subject string) (string, error) {
	return c.Issue(subject, c.accessTTL)
}

// IssueRefresh はリフレッシュトークンを発行する。
func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.Issue(subject, c.refreshTTL)
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 失敗した場合は常にErrInvalidTokenをラップしたエラーを返す。
// 認証ストアへの問い合わせは行わない。
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// SubjectOf はトークンに埋め込まれたsubjectを返す。
// 署名も有効期限も検証しないため、必ずVerifyが成功した後に呼び出すこと。
// 構造が壊れている場合は空文字列を返す。
func (c *Codec) SubjectOf(tokenString string) string {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return ""
	}
	return claims.Subject
}
