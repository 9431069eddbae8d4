package gateway

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/pkg/httpclient"
)

// hopHeaders は転送時に取り除くホップバイホップヘッダー。
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// upstream はルート定義と転送先クライアントの組。
type upstream struct {
	route  config.Route
	client *httpclient.Client
}

// Proxy はルートテーブルに従ってリクエストをバックエンドに転送する。
type Proxy struct {
	// upstreams は接頭辞の長い順に並んだ転送先。
	upstreams []upstream
	// logger は転送エラーを記録するロガー。
	logger *slog.Logger
}

// NewProxy はルートテーブルからProxyを生成する。optsは各ルートのHTTPクライアントに適用される。
func NewProxy(routes []config.Route, logger *slog.Logger, opts ...httpclient.Option) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	ups := make([]upstream, 0, len(routes))
	for _, r := range routes {
		ups = append(ups, upstream{
			route:  r,
			client: httpclient.New(strings.TrimRight(r.Target, "/"), opts...),
		})
	}
	sort.SliceStable(ups, func(i, j int) bool {
		return len(ups[i].route.Prefix) > len(ups[j].route.Prefix)
	})
	return &Proxy{upstreams: ups, logger: logger}
}

// match はpathに一致するルートのうち接頭辞が最も長いものを返す。
// 接頭辞はセグメント境界でのみ一致し、/api/authは/api/authorsに一致しない。
func (p *Proxy) match(path string) (upstream, bool) {
	for _, u := range p.upstreams {
		prefix := strings.TrimRight(u.route.Prefix, "/")
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return u, true
		}
	}
	return upstream{}, false
}

// Handler はルートテーブルに一致したリクエストを転送するハンドラを返す。
// 一致するルートが無ければ404、転送先と通信できなければ502を返す。
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := p.match(c.Request.URL.Path)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "ルートが見つかりません"})
			return
		}

		target := stripSegments(c.Request.URL.Path, u.route.StripPrefix)
		if c.Request.URL.RawQuery != "" {
			target += "?" + c.Request.URL.RawQuery
		}

		header := outboundHeader(c.Request)
		resp, err := u.client.Forward(c.Request.Context(), c.Request.Method, target, header, c.Request.Body)
		if err != nil {
			p.logger.ErrorContext(c.Request.Context(), "転送先との通信に失敗",
				"route", u.route.ID,
				"target", u.client.BaseURL()+target,
				"error", err,
			)
			c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		copyResponseHeader(c.Writer.Header(), resp.Header)
		c.Status(resp.StatusCode)
		c.Writer.WriteHeaderNow()
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			p.logger.WarnContext(c.Request.Context(), "レスポンスの転送が中断されました",
				"route", u.route.ID,
				"error", err,
			)
		}
	}
}

// stripSegments はpathの先頭からn個のセグメントを取り除く。
// すべて取り除かれた場合は "/" を返す。
func stripSegments(path string, n int) string {
	if n <= 0 {
		return path
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if n >= len(parts) {
		return "/"
	}
	return "/" + strings.Join(parts[n:], "/")
}

// outboundHeader は受信したリクエストから転送用のヘッダーを作る。
func outboundHeader(r *http.Request) http.Header {
	h := r.Header.Clone()
	removeHopHeaders(h)
	if r.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := h.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		h.Set("X-Forwarded-For", ip)
	}
	if h.Get("X-Forwarded-Host") == "" && r.Host != "" {
		h.Set("X-Forwarded-Host", r.Host)
	}
	if h.Get("X-Forwarded-Proto") == "" {
		proto := "http"
		if r.TLS != nil {
			proto = "https"
		}
		h.Set("X-Forwarded-Proto", proto)
	}
	return h
}

// copyResponseHeader は転送先のレスポンスヘッダーをdstに追加する。
// ゲートウェイが設定済みのヘッダーはゲートウェイの値を優先するが、Set-Cookieはすべて中継する。
func copyResponseHeader(dst, src http.Header) {
	src = src.Clone()
	removeHopHeaders(src)
	src.Del("Content-Length")
	for key, values := range src {
		if key != "Set-Cookie" && len(dst.Values(key)) > 0 {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// removeHopHeaders はホップバイホップヘッダーとConnectionに列挙されたヘッダーを取り除く。
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
