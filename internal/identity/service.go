package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/busgate/pkg/event"
	"github.com/nao1215/busgate/pkg/middleware"
	"github.com/nao1215/busgate/pkg/token"
)

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	// AccessToken はアクセストークン。
	AccessToken string
	// RefreshToken はリフレッシュトークン。
	RefreshToken string
	// User はログインしたアカウント。
	User *User
}

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    *string
	Age      *int
}

// Authenticator は認証サービスの操作。
type Authenticator interface {
	// Login はメールアドレスとパスワードでログインし、トークンを発行する。
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Register は新しいアカウントを登録する。
	Register(ctx context.Context, in RegisterInput) (*User, error)
	// LookupByEmail はメールアドレスでアカウントを取得する。
	LookupByEmail(ctx context.Context, email string) (*User, error)
	// LookupByUsername はユーザー名でアカウントを取得する。
	LookupByUsername(ctx context.Context, username string) (*User, error)
	// ValidateToken はトークンを検証し、主体のアカウントが存在して有効であることも確認する。
	ValidateToken(ctx context.Context, tok string) (*User, error)
	// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Service はAuthenticatorの実装。
type Service struct {
	store     Store
	hasher    Hasher
	codec     *token.Codec
	publisher event.Publisher
	logger    *slog.Logger
	// dummyHash は存在しないメールアドレスでも照合処理を行うためのハッシュ。
	dummyHash string
}

// NewService は認証サービスを生成する。publisherがnilの場合はイベントを送信しない。
func NewService(store Store, hasher Hasher, codec *token.Codec, publisher event.Publisher, logger *slog.Logger) (*Service, error) {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		codec:     codec,
		publisher: publisher,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Login はメールアドレスとパスワードでログインする。
// アカウントが無ければErrNotFound、パスワードが違えばErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, err
	}
	// 最終ログインとして更新日時を記録する。失敗してもログインは継続する。
	if err := s.store.Touch(ctx, u.ID); err != nil {
		s.logger.WarnContext(ctx, "更新日時の記録に失敗", "user_id", u.ID, "error", err)
	}

	access, err := s.codec.IssueAccess(u.Email)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの発行に失敗: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(u.Email)
	if err != nil {
		return nil, fmt.Errorf("リフレッシュトークンの発行に失敗: %w", err)
	}
	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

// Register はアカウントを登録する。メールアドレス、ユーザー名の順に重複を確認し、
// どちらかが使われていればErrConflictを返す。確認後の挿入で一意制約に違反した場合もErrConflictになる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	exists, err := s.store.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: メールアドレスは既に使われています", ErrConflict)
	}
	exists, err = s.store.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: ユーザー名は既に使われています", ErrConflict)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Create(ctx, NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Age:          in.Age,
		Role:         string(middleware.RoleUser),
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	s.emitUserCreated(ctx, u)
	return u, nil
}

// LookupByEmail はメールアドレスでアカウントを取得する。
func (s *Service) LookupByEmail(ctx context.Context, email string) (*User, error) {
	return mapNotFound(s.store.FindByEmail(ctx, email))
}

// LookupByUsername はユーザー名でアカウントを取得する。
func (s *Service) LookupByUsername(ctx context.Context, username string) (*User, error) {
	return mapNotFound(s.store.FindByUsername(ctx, username))
}

// ValidateToken はトークンを検証し、主体のアカウントを返す。
func (s *Service) ValidateToken(ctx context.Context, tok string) (*User, error) {
	claims, err := s.codec.Verify(tok)
	if err != nil {
		return nil, err
	}
	return s.activeSubject(ctx, claims.Subject)
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return "", err
	}
	u, err := s.activeSubject(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	access, err := s.codec.IssueAccess(u.Email)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの発行に失敗: %w", err)
	}
	return access, nil
}

// LoadRole はmiddleware.IdentityLoaderとして使うためのロール解決関数。
func (s *Service) LoadRole(ctx context.Context, subject string) (string, error) {
	u, err := s.activeSubject(ctx, subject)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// activeSubject は主体のアカウントが存在して有効であることを確認する。
func (s *Service) activeSubject(ctx context.Context, subject string) (*User, error) {
	u, err := mapNotFound(s.store.FindByEmail(ctx, subject))
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}

// emitUserCreated はUserCreatedイベントを送信する。失敗しても登録は成功として扱う。
func (s *Service) emitUserCreated(ctx context.Context, u *User) {
	ev, err := event.NewUserCreated(event.UserCreatedData{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "イベント生成に失敗", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "イベント送信に失敗", "event_type", ev.EventType, "error", err)
	}
}

// mapNotFound はストアのErrUserNotFoundをErrNotFoundに変換する。
func mapNotFound(u *User, err error) (*User, error) {
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}
