package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	newRouter := func(origins []string, called *bool) *gin.Engine {
		router := gin.New()
		router.Use(CORS(origins))
		handler := func(c *gin.Context) {
			if called != nil {
				*called = true
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		}
		router.GET("/api/routes", handler)
		router.OPTIONS("/api/routes", handler)
		return router
	}

	t.Run("許可されたオリジンに資格情報付きのCORSヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		newRouter([]string{"http://localhost:5173", "https://bus.example.com"}, nil).ServeHTTP(w, req)

		want := map[string]string{
			"Access-Control-Allow-Origin":      "http://localhost:5173",
			"Access-Control-Allow-Credentials": "true",
			"Access-Control-Allow-Headers":     "Authorization, Content-Type, X-Correlation-ID",
			"Access-Control-Expose-Headers":    "X-Correlation-ID",
			"Access-Control-Max-Age":           "86400",
		}
		for k, v := range want {
			if got := w.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("許可されていないオリジンにはCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"https://evil.com", ""} {
			req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			w := httptest.NewRecorder()
			newRouter([]string{"http://localhost:5173"}, nil).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Origin=%q: ステータスコード = %d, want %d", origin, w.Code, http.StatusOK)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("Origin=%q: Access-Control-Allow-Origin = %q, want empty string", origin, got)
			}
		}
	})

	t.Run("OPTIONSリクエストで204が返りハンドラーが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		called := false
		req := httptest.NewRequest(http.MethodOptions, "/api/routes", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		newRouter([]string{"http://localhost:5173"}, &called).ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if called {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
	})

	t.Run("GETリクエストではハンドラーが実行されること", func(t *testing.T) {
		t.Parallel()

		called := false
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		newRouter([]string{"http://localhost:5173"}, &called).ServeHTTP(httptest.NewRecorder(), req)

		if !called {
			t.Error("GETリクエストでハンドラーが呼ばれるべき")
		}
	})
}
