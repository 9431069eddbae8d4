package identity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/busgate/pkg/migration"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound はストアに該当するレコードが無いことを示す。
var ErrUserNotFound = errors.New("ユーザーレコードが存在しません")

// Store はアカウントの永続化を担当する。
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Create はアカウントを作成する。一意制約違反の場合はErrConflictを返す。
	Create(ctx context.Context, u NewUser) (*User, error)
	// Touch は更新日時を現在時刻にする。
	Touch(ctx context.Context, id int64) error
}

// SQLiteStore はSQLiteを使ったStoreの実装。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now は現在時刻を返す関数。
	now func() time.Time
}

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用したストアを返す。
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のDBになる
		db.SetMaxOpenConns(1)
	}
	if err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectUser = `SELECT id, username, email, password_hash, phone, age, role, is_active, created_at, updated_at FROM users`

// FindByEmail はメールアドレスでアカウントを取得する。
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, selectUser+" WHERE email = ?", email)
}

// FindByUsername はユーザー名でアカウントを取得する。
func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, selectUser+" WHERE username = ?", username)
}

// ExistsByEmail はメールアドレスが使われているかを返す。
func (s *SQLiteStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email)
}

// ExistsByUsername はユーザー名が使われているかを返す。
func (s *SQLiteStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username)
}

// Create はアカウントを作成する。
func (s *SQLiteStore) Create(ctx context.Context, u NewUser) (*User, error) {
	now := s.now().UTC()
	ts := now.Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, phone, age, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, nullString(u.Phone), nullInt(u.Age), u.Role, boolToInt(u.IsActive), ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: メールアドレスまたはユーザー名が重複しています", ErrConflict)
		}
		return nil, fmt.Errorf("アカウントの作成に失敗: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("作成したアカウントIDの取得に失敗: %w", err)
	}
	return &User{
		ID:           id,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Age:          u.Age,
		Role:         u.Role,
		IsActive:     u.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Touch は更新日時を現在時刻にする。
func (s *SQLiteStore) Touch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET updated_at = ? WHERE id = ?",
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("更新日時の更新に失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// findOne は1件のアカウントを取得する。
func (s *SQLiteStore) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var (
		u                User
		phone            sql.NullString
		age              sql.NullInt64
		active           int
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &phone, &age, &u.Role, &active, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗: %w", err)
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	u.IsActive = active != 0
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("created_atの解析に失敗: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("updated_atの解析に失敗: %w", err)
	}
	return &u, nil
}

// exists は存在確認クエリを実行する。
func (s *SQLiteStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("存在確認に失敗: %w", err)
	}
	return found, nil
}

// isUniqueViolation はSQLiteの一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
