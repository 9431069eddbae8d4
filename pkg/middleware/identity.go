package middleware

import (
	"context"
	"strings"
)

// Role はアカウントのロール。userとadminの2種類に閉じている。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// ParseRole は保存されているロール文字列をRoleに変換する。
// 大文字小文字を区別せず "admin" のみ管理者とし、それ以外はすべて一般ユーザーとして扱う。
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Authorities はロールから導かれる権限の一覧を返す。
func (r Role) Authorities() []string {
	if r == RoleAdmin {
		return []string{"ROLE_ADMIN"}
	}
	return []string{"ROLE_USER"}
}

// Identity は検証済みトークンから構築されるリクエスト単位の認証情報。
// 1リクエストの間だけ存在し、永続化もリクエスト間での共有もしない。
type Identity struct {
	// Subject はトークンの主体（メールアドレス）。
	Subject string
	// Role はアカウントのロール。
	Role Role
	// Authorities はロールから導かれた権限。
	Authorities []string
}

// HasAuthority は指定した権限を持つかどうかを返す。
func (id *Identity) HasAuthority(authority string) bool {
	for _, a := range id.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// identityKey はcontext.ContextにIdentityを格納するためのキー型。
type identityKey struct{}

// WithIdentity はcontextにIdentityを設定する。
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext はcontextからIdentityを取得する。未認証ならnilを返す。
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
