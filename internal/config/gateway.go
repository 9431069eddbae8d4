package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExcludedPaths はゲートウェイでトークン変換を行わないパスの既定値。
var DefaultExcludedPaths = []string{"/api/auth/login", "/api/auth/register"}

// Route はゲートウェイのルーティング定義。
type Route struct {
	// ID はルートの識別名。
	ID string `yaml:"id"`
	// Prefix はこのルートに一致するパス接頭辞（例: "/api/auth"）。
	Prefix string `yaml:"prefix"`
	// Target は転送先サービスのベースURL。
	Target string `yaml:"target"`
	// StripPrefix は転送時に取り除く先頭のパスセグメント数。
	StripPrefix int `yaml:"strip_prefix"`
}

// validate はルート定義が妥当かを検証する。
func (r Route) validate() error {
	if r.ID == "" {
		return fmt.Errorf("ルートIDが空です")
	}
	if !strings.HasPrefix(r.Prefix, "/") {
		return fmt.Errorf("ルート %s: prefixは/で始めてください: %q", r.ID, r.Prefix)
	}
	u, err := url.Parse(r.Target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ルート %s: targetが不正です: %q", r.ID, r.Target)
	}
	if r.StripPrefix < 0 {
		return fmt.Errorf("ルート %s: strip_prefixは0以上で指定してください", r.ID)
	}
	return nil
}

// Gateway はゲートウェイサービスの設定。
type Gateway struct {
	Common
	// ExcludedPaths はCookieからのトークン変換を行わないパス接頭辞。
	ExcludedPaths []string
	// Routes はルーティングテーブル。
	Routes []Route
}

// LoadGateway はゲートウェイの設定を読み込む。ゲートウェイはトークンを検証しないため署名鍵は不要。
// GATEWAY_ROUTES_FILEが指定されていればルートテーブルをそのYAMLから読み込む。
func LoadGateway(lookup Lookup) (*Gateway, error) {
	routes := DefaultRoutes(lookup)
	if path := getOr(lookup, "GATEWAY_ROUTES_FILE", ""); path != "" {
		var err error
		routes, err = LoadRoutes(path)
		if err != nil {
			return nil, err
		}
	}

	return &Gateway{
		Common:        loadCommon(lookup, "8080"),
		ExcludedPaths: getList(lookup, "GATEWAY_AUTH_EXCLUDED_PATHS", DefaultExcludedPaths),
		Routes:        routes,
	}, nil
}

// DefaultRoutes は既定のルートテーブルを返す。転送先URLは環境変数で上書きできる。
func DefaultRoutes(lookup Lookup) []Route {
	return []Route{
		{ID: "auth", Prefix: "/api/auth", Target: getOr(lookup, "IDENTITY_URL", "http://localhost:8081"), StripPrefix: 1},
		{ID: "companies", Prefix: "/api/companies", Target: getOr(lookup, "COMPANY_URL", "http://localhost:8082"), StripPrefix: 1},
		{ID: "routes", Prefix: "/api/routes", Target: getOr(lookup, "ROUTE_URL", "http://localhost:8083"), StripPrefix: 1},
		{ID: "schedules", Prefix: "/api/schedules", Target: getOr(lookup, "SCHEDULE_URL", "http://localhost:8084"), StripPrefix: 1},
		{ID: "bookings", Prefix: "/api/bookings", Target: getOr(lookup, "BOOKING_URL", "http://localhost:8085"), StripPrefix: 1},
		{ID: "reviews", Prefix: "/api/reviews", Target: getOr(lookup, "REVIEW_URL", "http://localhost:8086"), StripPrefix: 1},
		{ID: "chatbot", Prefix: "/api/chatbot", Target: getOr(lookup, "CHATBOT_URL", "http://localhost:8087"), StripPrefix: 1},
	}
}

// routeFile はルート定義ファイルの構造。
type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes はYAMLファイルからルートテーブルを読み込む。
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ルート定義ファイルの読み込みに失敗: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes はYAMLのルート定義をパースして検証する。
func ParseRoutes(data []byte) ([]Route, error) {
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ルート定義のパースに失敗: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("ルート定義が空です")
	}
	seen := make(map[string]struct{}, len(f.Routes))
	for _, r := range f.Routes {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("ルートIDが重複しています: %s", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return f.Routes, nil
}
