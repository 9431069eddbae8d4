package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// seen はバックエンドが受け取ったリクエストの内容。
type seen struct {
	Method        string `json:"method"`
	Path          string `json:"path"`
	Query         string `json:"query"`
	Authorization string `json:"authorization"`
	CorrelationID string `json:"correlationId"`
	Body          string `json:"body"`
	Connection    string `json:"connection"`
	ForwardedFor  string `json:"forwardedFor"`
}

// echoBackend は受け取ったリクエストをJSONで返すバックエンドを起動する。
func echoBackend(t *testing.T) *httptest.Server {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "ACCESS_TOKEN=a; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "REFRESH_TOKEN=r; Path=/; HttpOnly")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(seen{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			CorrelationID: r.Header.Get(middleware.HeaderCorrelationID),
			Body:          string(body),
			Connection:    r.Header.Get("X-Hop"),
			ForwardedFor:  r.Header.Get("X-Forwarded-For"),
		})
	}))
	t.Cleanup(backend.Close)
	return backend
}

// newTestServer はすべてのルートをbackendURLに向けたテスト用Gatewayサーバーを生成する。
func newTestServer(t *testing.T, backendURL string) *Server {
	t.Helper()

	cfg := &config.Gateway{
		Common:        config.Common{Port: "0", FrontendURL: "http://localhost:5173"},
		ExcludedPaths: config.DefaultExcludedPaths,
		Routes: []config.Route{
			{ID: "auth", Prefix: "/api/auth", Target: backendURL, StripPrefix: 1},
			{ID: "bookings", Prefix: "/api/bookings", Target: backendURL, StripPrefix: 1},
			{ID: "admin-bookings", Prefix: "/api/bookings/admin", Target: backendURL, StripPrefix: 3},
		},
	}
	return newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// do はGatewayにリクエストを送信してレスポンスを返す。
func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// decodeSeen はバックエンドのエコー結果をデコードする。
func decodeSeen(t *testing.T, w *httptest.ResponseRecorder) seen {
	t.Helper()

	var got seen
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v, body=%s", err, w.Body.String())
	}
	return got
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, "http://127.0.0.1:1")
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "gateway" {
		t.Errorf("body = %v, want status=ok service=gateway", body)
	}
}

// TestEdgeForwarder はCookieからAuthorizationヘッダーへの変換を検証する。
func TestEdgeForwarder(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)

	t.Run("ACCESS_TOKEN CookieがBearerヘッダーに変換されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings/42", nil)
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: "tok-123"})

		got := decodeSeen(t, do(t, s, req))
		if got.Authorization != "Bearer tok-123" {
			t.Errorf("Authorization = %q, want %q", got.Authorization, "Bearer tok-123")
		}
	})

	t.Run("Cookieがあれば受信したAuthorizationヘッダーを置き換えること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings/42", nil)
		req.Header.Set("Authorization", "Bearer from-header")
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: "from-cookie"})

		got := decodeSeen(t, do(t, s, req))
		if got.Authorization != "Bearer from-cookie" {
			t.Errorf("Authorization = %q, want %q", got.Authorization, "Bearer from-cookie")
		}
	})

	t.Run("Cookieが無ければ受信したヘッダーのまま転送されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings/42", nil)
		req.Header.Set("Authorization", "Bearer from-header")

		got := decodeSeen(t, do(t, s, req))
		if got.Authorization != "Bearer from-header" {
			t.Errorf("Authorization = %q, want %q", got.Authorization, "Bearer from-header")
		}
	})

	t.Run("トークンが無くても拒否されないこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}
		if got := decodeSeen(t, w); got.Authorization != "" {
			t.Errorf("Authorization = %q, want empty", got.Authorization)
		}
	})

	t.Run("除外パスではCookieを変換しないこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com"}`))
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: "stale"})

		got := decodeSeen(t, do(t, s, req))
		if got.Authorization != "" {
			t.Errorf("Authorization = %q, want empty", got.Authorization)
		}
		if got.Path != "/auth/login" {
			t.Errorf("path = %q, want %q", got.Path, "/auth/login")
		}
	})
}

// TestCorrelationID は相関IDの伝播を検証する。
func TestCorrelationID(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)

	t.Run("受信した相関IDがそのまま使われること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
		req.Header.Set(middleware.HeaderCorrelationID, "trace-from-client")

		w := do(t, s, req)
		if got := decodeSeen(t, w).CorrelationID; got != "trace-from-client" {
			t.Errorf("転送先の相関ID = %q, want %q", got, "trace-from-client")
		}
		if got := w.Header().Get(middleware.HeaderCorrelationID); got != "trace-from-client" {
			t.Errorf("レスポンスの相関ID = %q, want %q", got, "trace-from-client")
		}
	})

	t.Run("相関IDが無ければ8文字のIDが生成されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))

		upstream := decodeSeen(t, w).CorrelationID
		if len(upstream) != 8 {
			t.Errorf("転送先の相関ID = %q, want 8文字", upstream)
		}
		if got := w.Header().Get(middleware.HeaderCorrelationID); got != upstream {
			t.Errorf("レスポンスの相関ID = %q, want %q", got, upstream)
		}
	})
}

// TestProxy はルートテーブルによる転送を検証する。
func TestProxy(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)

	t.Run("先頭セグメントを取り除きクエリとボディを保持すること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/7/seats?from=1&to=3", strings.NewReader(`{"seat":"A1"}`))
		req.Header.Set("Content-Type", "application/json")

		w := do(t, s, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}
		got := decodeSeen(t, w)
		if got.Method != http.MethodPost {
			t.Errorf("method = %q, want %q", got.Method, http.MethodPost)
		}
		if got.Path != "/bookings/7/seats" {
			t.Errorf("path = %q, want %q", got.Path, "/bookings/7/seats")
		}
		if got.Query != "from=1&to=3" {
			t.Errorf("query = %q, want %q", got.Query, "from=1&to=3")
		}
		if got.Body != `{"seat":"A1"}` {
			t.Errorf("body = %q, want %q", got.Body, `{"seat":"A1"}`)
		}
	})

	t.Run("接頭辞が最も長いルートが選ばれること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		got := decodeSeen(t, do(t, s, httptest.NewRequest(http.MethodGet, "/api/bookings/admin/stats", nil)))
		if got.Path != "/stats" {
			t.Errorf("path = %q, want %q", got.Path, "/stats")
		}
	})

	t.Run("Set-Cookieが複数あってもすべて中継されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		w := do(t, s, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))

		cookies := w.Result().Cookies()
		names := make(map[string]string, len(cookies))
		for _, c := range cookies {
			names[c.Name] = c.Value
		}
		if names[middleware.AccessTokenCookie] != "a" || names[middleware.RefreshTokenCookie] != "r" {
			t.Errorf("cookies = %v, want ACCESS_TOKEN=a and REFRESH_TOKEN=r", names)
		}
	})

	t.Run("ホップバイホップヘッダーは転送されないこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
		req.Header.Set("Connection", "X-Hop")
		req.Header.Set("X-Hop", "secret")

		if got := decodeSeen(t, do(t, s, req)).Connection; got != "" {
			t.Errorf("X-Hop = %q, want empty", got)
		}
	})

	t.Run("X-Forwarded-Forにクライアントのアドレスが追加されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", "198.51.100.1")

		want := "198.51.100.1, 203.0.113.7"
		if got := decodeSeen(t, do(t, s, req)).ForwardedFor; got != want {
			t.Errorf("X-Forwarded-For = %q, want %q", got, want)
		}
	})

	t.Run("一致するルートが無ければ404を返すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, backend.URL)
		for _, path := range []string{"/api/unknown", "/api/authors"} {
			w := do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusNotFound {
				t.Errorf("%s: ステータスコード = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})

	t.Run("転送先に接続できなければ502を返すこと", func(t *testing.T) {
		t.Parallel()

		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		s := newTestServer(t, deadURL)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))
		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("転送先のエラーステータスをそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		}))
		t.Cleanup(failing.Close)

		s := newTestServer(t, failing.URL)
		w := do(t, s, httptest.NewRequest(http.MethodDelete, "/api/bookings/1", nil))
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestStripSegments はstripSegments関数を検証する。
func TestStripSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		n    int
		want string
	}{
		{"/api/auth/login", 1, "/auth/login"},
		{"/api/auth/login", 0, "/api/auth/login"},
		{"/api/auth", 2, "/"},
		{"/api/auth", 5, "/"},
		{"/api/bookings/admin/stats", 3, "/stats"},
	}
	for _, tt := range tests {
		if got := stripSegments(tt.path, tt.n); got != tt.want {
			t.Errorf("stripSegments(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}
