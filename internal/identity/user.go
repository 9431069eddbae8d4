package identity

import "time"

// User は認証サービスが管理するアカウント。
type User struct {
	// ID はアカウントの識別子。再利用されない。
	ID int64
	// Username はユーザー名。一意。
	Username string
	// Email はメールアドレス。一意で、トークンの主体として使われる。
	Email string
	// PasswordHash はパスワードのハッシュ値。外部に出さない。
	PasswordHash string
	// Phone は電話番号。任意。
	Phone *string
	// Age は年齢。任意。
	Age *int
	// Role はロール（"user" または "admin"）。
	Role string
	// IsActive はアカウントが有効かどうか。
	IsActive bool
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// NewUser はアカウント作成時の入力。
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Phone        *string
	Age          *int
	Role         string
	IsActive     bool
}
