package eventstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/busgate/pkg/event"
	"github.com/nao1215/busgate/pkg/migration"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrVersionConflict は同じAggregateの同じバージョンが既に保存されていることを示す。
	ErrVersionConflict = errors.New("イベントのバージョンが重複しています")
	// ErrDuplicateEvent は同じIDのイベントが既に保存されていることを示す。
	ErrDuplicateEvent = errors.New("イベントIDが重複しています")
)

// timeLayout はcreated_atの保存形式。固定長にして文字列比較で時刻順になるようにする。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultListLimit は一覧取得の既定の上限件数。
const DefaultListLimit = 100

// Store はイベントを追記のみで永続化する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用したストアを返す。
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Append はイベントを追記する。ev.Versionが0の場合は同じAggregateの最新バージョン+1を
// 割り当て、evに反映する。
func (s *Store) Append(ctx context.Context, ev *event.Event) error {
	created := ev.CreatedAt.UTC().Format(timeLayout)
	var err error
	if ev.Version == 0 {
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
			 SELECT ?, ?, ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?
			 FROM events WHERE aggregate_type = ? AND aggregate_id = ?
			 RETURNING version`,
			ev.ID, ev.AggregateID, string(ev.AggregateType), string(ev.EventType), string(ev.Data), created,
			string(ev.AggregateType), ev.AggregateID,
		).Scan(&ev.Version)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.AggregateID, string(ev.AggregateType), string(ev.EventType), string(ev.Data), ev.Version, created,
		)
	}
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) {
			switch se.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				return fmt.Errorf("%w: id=%s", ErrDuplicateEvent, ev.ID)
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return fmt.Errorf("%w: aggregate_id=%s, version=%d", ErrVersionConflict, ev.AggregateID, ev.Version)
			}
		}
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// LatestVersion は指定したAggregateの最新バージョンを返す。イベントが無ければ0を返す。
func (s *Store) LatestVersion(ctx context.Context, aggregateType event.AggregateType, aggregateID string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_type = ? AND aggregate_id = ?",
		string(aggregateType), aggregateID,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}
	return v, nil
}

const selectEvent = `SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events`

// ListByAggregate は指定したAggregateのイベントをバージョン順に返す。
func (s *Store) ListByAggregate(ctx context.Context, aggregateType event.AggregateType, aggregateID string) ([]*event.Event, error) {
	return s.list(ctx, selectEvent+" WHERE aggregate_type = ? AND aggregate_id = ? ORDER BY version",
		string(aggregateType), aggregateID)
}

// ListByType は指定した種類のイベントを古い順に最大limit件返す。
func (s *Store) ListByType(ctx context.Context, eventType event.Type, limit int) ([]*event.Event, error) {
	return s.list(ctx, selectEvent+" WHERE event_type = ? ORDER BY created_at, id LIMIT ?",
		string(eventType), normalizeLimit(limit))
}

// ListSince はsinceより後に作成されたイベントを古い順に最大limit件返す。
func (s *Store) ListSince(ctx context.Context, since time.Time, limit int) ([]*event.Event, error) {
	return s.list(ctx, selectEvent+" WHERE created_at > ? ORDER BY created_at, id LIMIT ?",
		since.UTC().Format(timeLayout), normalizeLimit(limit))
}

// list はクエリ結果をイベントのスライスにする。
func (s *Store) list(ctx context.Context, query string, args ...any) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer rows.Close()

	events := []*event.Event{}
	for rows.Next() {
		var (
			ev                    event.Event
			aggType, evType, data string
			created               string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &aggType, &evType, &data, &ev.Version, &created); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		ev.AggregateType = event.AggregateType(aggType)
		ev.EventType = event.Type(evType)
		ev.Data = []byte(data)
		if ev.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("created_atの解析に失敗: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	return events, nil
}

// normalizeLimit は上限件数を1以上DefaultListLimit以下に丸める。
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
