// Package logging はslogベースの構造化ロガーを提供する。
//
// リクエスト単位の相関IDをcontext.Contextに格納し、ログ出力時に自動的に
// correlation_id属性として付与する。また、ログに載せるペイロードを
// 許可リスト方式でマスクする補助関数を持つ。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// CorrelationIDKey はログレコードに付与する相関IDの属性名。
const CorrelationIDKey = "correlation_id"

// Config はロガーの設定。
type Config struct {
	// Level はログレベル（debug, info, warn, error）。
	Level string
	// Format は出力形式（json, text）。
	Format string
	// Writer は出力先。nilの場合は標準エラー出力。
	Writer io.Writer
	// Service はすべてのレコードに付与するサービス名。空なら付与しない。
	Service string
}

// New は設定からロガーを生成する。
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("未対応のログ形式です: %s", cfg.Format)
	}

	logger := slog.New(&correlationHandler{next: h})
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger, nil
}

// ParseLevel はログレベル文字列をslog.Levelに変換する。空文字列はinfoとして扱う。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("未対応のログレベルです: %s", s)
	}
}

// Discard は何も出力しないロガーを返す。テストで使用する。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// correlationKey はcontextに相関IDを格納するためのキー型。
type correlationKey struct{}

// WithCorrelationID はcontextに相関IDを設定する。
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID はcontextから相関IDを取得する。設定されていなければ空文字列を返す。
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// correlationHandler はcontextの相関IDをレコードに付与するslog.Handler。
type correlationHandler struct {
	next slog.Handler
}

// Enabled は内部ハンドラに委譲する。
func (h *correlationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle は相関IDがあれば属性として追加してから内部ハンドラに渡す。
func (h *correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(CorrelationIDKey, id))
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs は内部ハンドラに委譲する。
func (h *correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlationHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup は内部ハンドラに委譲する。
func (h *correlationHandler) WithGroup(name string) slog.Handler {
	return &correlationHandler{next: h.next.WithGroup(name)}
}
