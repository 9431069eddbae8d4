package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestNew はNew関数を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("JSON形式でサービス名と相関IDが出力されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Format: "json", Writer: &buf, Service: "identity"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		ctx := WithCorrelationID(context.Background(), "abcd1234")
		logger.InfoContext(ctx, "テスト", "path", "/auth/login")

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("ログのパースに失敗: %v", err)
		}
		if rec[CorrelationIDKey] != "abcd1234" {
			t.Errorf("correlation_id = %v, want %q", rec[CorrelationIDKey], "abcd1234")
		}
		if rec["service"] != "identity" {
			t.Errorf("service = %v, want %q", rec["service"], "identity")
		}
		if rec["path"] != "/auth/login" {
			t.Errorf("path = %v, want %q", rec["path"], "/auth/login")
		}
	})

	t.Run("相関IDが無い場合は属性が付与されないこと", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New(Config{Format: "json", Writer: &buf})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		logger.InfoContext(context.Background(), "no-id")
		if strings.Contains(buf.String(), CorrelationIDKey) {
			t.Errorf("相関IDが出力されている: %s", buf.String())
		}
	})

	t.Run("With経由でも相関IDが付与されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New(Config{Format: "text", Writer: &buf})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		ctx := WithCorrelationID(context.Background(), "cid-1")
		logger.With("component", "x").WithGroup("g").InfoContext(ctx, "msg")
		if !strings.Contains(buf.String(), "cid-1") {
			t.Errorf("相関IDが出力されていない: %s", buf.String())
		}
	})

	t.Run("ログレベル未満のレコードは出力されないこと", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New(Config{Level: "warn", Writer: &buf})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		logger.Info("info")
		if buf.Len() != 0 {
			t.Errorf("infoレコードが出力された: %s", buf.String())
		}
	})

	t.Run("未対応の形式やレベルはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(Config{Format: "xml"}); err == nil {
			t.Error("未対応の形式でエラーが返るべき")
		}
		if _, err := New(Config{Level: "verbose"}); err == nil {
			t.Error("未対応のレベルでエラーが返るべき")
		}
	})
}

// TestParseLevel はParseLevel関数を検証する。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q)でエラーが発生: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestCorrelationID はcontextへの相関IDの出し入れを検証する。
func TestCorrelationID(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID() = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "xyz")
	if got := CorrelationID(ctx); got != "xyz" {
		t.Errorf("CorrelationID() = %q, want %q", got, "xyz")
	}
}

// TestAllowed はAllowed関数を検証する。
func TestAllowed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("login", Allowed("params", map[string]any{
		"email":    "alice@x.com",
		"password": "pw123",
	}, "email"))

	var rec struct {
		Params map[string]string `json:"params"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if rec.Params["email"] != "alice@x.com" {
		t.Errorf("email = %q, want %q", rec.Params["email"], "alice@x.com")
	}
	if rec.Params["password"] != Masked {
		t.Errorf("password = %q, want %q", rec.Params["password"], Masked)
	}
	if strings.Contains(buf.String(), "pw123") {
		t.Errorf("パスワードがログに出力されている: %s", buf.String())
	}
}
