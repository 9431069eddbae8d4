package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/pkg/logging"
)

// TestCorrelation はCorrelationミドルウェアを検証する。
func TestCorrelation(t *testing.T) {
	t.Parallel()

	newRouter := func(seen *string) *gin.Engine {
		router := gin.New()
		router.Use(Correlation())
		router.GET("/x", func(c *gin.Context) {
			*seen = logging.CorrelationID(c.Request.Context())
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("受信した相関IDがそのまま使われること", func(t *testing.T) {
		t.Parallel()

		var seen string
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderCorrelationID, "abc-123")
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		if seen != "abc-123" {
			t.Errorf("contextの相関ID = %q, want %q", seen, "abc-123")
		}
		if got := w.Header().Get(HeaderCorrelationID); got != "abc-123" {
			t.Errorf("レスポンスヘッダー = %q, want %q", got, "abc-123")
		}
	})

	t.Run("相関IDが無い場合は8文字のIDが生成されること", func(t *testing.T) {
		t.Parallel()

		var seen string
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		if len(seen) != 8 {
			t.Errorf("生成された相関IDの長さ = %d, want 8 (%q)", len(seen), seen)
		}
		if got := w.Header().Get(HeaderCorrelationID); got != seen {
			t.Errorf("レスポンスヘッダー = %q, want %q", got, seen)
		}
	})

	t.Run("空白のみの相関IDは新規生成されること", func(t *testing.T) {
		t.Parallel()

		var seen string
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderCorrelationID, "   ")
		newRouter(&seen).ServeHTTP(httptest.NewRecorder(), req)

		if strings.TrimSpace(seen) == "" || len(seen) != 8 {
			t.Errorf("相関ID = %q, want 8文字の新規ID", seen)
		}
	})
}

// TestNewCorrelationID は生成される相関IDが毎回異なることを検証する。
func TestNewCorrelationID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 100 {
		id := NewCorrelationID()
		if len(id) != 8 {
			t.Fatalf("len(NewCorrelationID()) = %d, want 8", len(id))
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 99 {
		t.Errorf("一意な相関IDの数 = %d, want >= 99", len(seen))
	}
}

// TestRequestLogger はRequestLoggerミドルウェアを検証する。
func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New()でエラーが発生: %v", err)
	}

	router := gin.New()
	router.Use(Correlation(), RequestLogger(logger))
	router.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "x"})
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(HeaderCorrelationID, "cid-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{`"status":404`, `"path":"/missing"`, `"correlation_id":"cid-42"`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Errorf("ログに %s が含まれていない: %s", want, out)
		}
	}
}
