package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/busgate/pkg/logging"
)

// loggingAuthenticator は各操作の開始、所要時間、失敗をログに記録するAuthenticator。
// 引数は許可リストにあるものだけをそのまま出力し、パスワードやトークンはマスクする。
type loggingAuthenticator struct {
	next   Authenticator
	logger *slog.Logger
}

// NewLoggingAuthenticator はnextをログ記録で包んだAuthenticatorを返す。
func NewLoggingAuthenticator(next Authenticator, logger *slog.Logger) Authenticator {
	return &loggingAuthenticator{next: next, logger: logger.With("component", "authenticator")}
}

// observe は操作の開始を記録し、終了時に呼ぶ関数を返す。
func (l *loggingAuthenticator) observe(ctx context.Context, op string, params map[string]any, allow ...string) func(error) {
	start := time.Now()
	l.logger.DebugContext(ctx, "開始", "op", op, logging.Allowed("params", params, allow...))
	return func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			l.logger.InfoContext(ctx, "失敗", "op", op, "elapsed", elapsed, "error", err)
			return
		}
		l.logger.DebugContext(ctx, "完了", "op", op, "elapsed", elapsed)
	}
}

// Login はメールアドレスだけを記録してログインを委譲する。
func (l *loggingAuthenticator) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	done := l.observe(ctx, "login", map[string]any{"email": email, "password": password}, "email")
	defer func() { done(err) }()
	return l.next.Login(ctx, email, password)
}

// Register はユーザー名とメールアドレスを記録して登録を委譲する。
func (l *loggingAuthenticator) Register(ctx context.Context, in RegisterInput) (u *User, err error) {
	done := l.observe(ctx, "register", map[string]any{
		"username": in.Username,
		"email":    in.Email,
		"password": in.Password,
		"phone":    in.Phone,
	}, "username", "email")
	defer func() { done(err) }()
	return l.next.Register(ctx, in)
}

// LookupByEmail はメールアドレスによる検索を記録して委譲する。
func (l *loggingAuthenticator) LookupByEmail(ctx context.Context, email string) (u *User, err error) {
	done := l.observe(ctx, "lookup_by_email", map[string]any{"email": email}, "email")
	defer func() { done(err) }()
	return l.next.LookupByEmail(ctx, email)
}

// LookupByUsername はユーザー名による検索を記録して委譲する。
func (l *loggingAuthenticator) LookupByUsername(ctx context.Context, username string) (u *User, err error) {
	done := l.observe(ctx, "lookup_by_username", map[string]any{"username": username}, "username")
	defer func() { done(err) }()
	return l.next.LookupByUsername(ctx, username)
}

// ValidateToken はトークンをマスクして検証を委譲する。
func (l *loggingAuthenticator) ValidateToken(ctx context.Context, tok string) (u *User, err error) {
	done := l.observe(ctx, "validate_token", map[string]any{"token": tok})
	defer func() { done(err) }()
	return l.next.ValidateToken(ctx, tok)
}

// Refresh はリフレッシュトークンをマスクして再発行を委譲する。
func (l *loggingAuthenticator) Refresh(ctx context.Context, refreshToken string) (tok string, err error) {
	done := l.observe(ctx, "refresh", map[string]any{"refresh_token": refreshToken})
	defer func() { done(err) }()
	return l.next.Refresh(ctx, refreshToken)
}
