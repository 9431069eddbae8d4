package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret はJWT_SECRETが設定されていないことを示す。
var ErrMissingSecret = errors.New("JWT_SECRETが設定されていません")

// Lookup は設定キーに対応する値を返す。os.LookupEnvと同じシグネチャ。
type Lookup func(key string) (string, bool)

// FileLookup は.envファイルの内容をフォールバックとして持つLookupを返す。
// primaryに値があればそれを優先する。ファイルが存在しない場合はprimaryをそのまま返す。
func FileLookup(path string, primary Lookup) (Lookup, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return primary, nil
		}
		return nil, fmt.Errorf(".envファイルの読み込みに失敗: %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// Common はゲートウェイと認証サービスで共通の設定。
type Common struct {
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string
	// LogFormat はログ形式（json, text）。
	LogFormat string
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
}

// loadCommon は共通設定を読み込む。defaultPortはPORT未設定時の値。
func loadCommon(lookup Lookup, defaultPort string) Common {
	return Common{
		LogLevel:    getOr(lookup, "LOG_LEVEL", "info"),
		LogFormat:   getOr(lookup, "LOG_FORMAT", "json"),
		Port:        getOr(lookup, "PORT", defaultPort),
		FrontendURL: getOr(lookup, "FRONTEND_URL", "http://localhost:5173"),
	}
}

// getOr は値が空でなければそれを、そうでなければfallbackを返す。
func getOr(lookup Lookup, key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

// getMillis はミリ秒単位の整数値をtime.Durationとして読み込む。
func getMillis(lookup Lookup, key string, fallback time.Duration) (time.Duration, error) {
	v := getOr(lookup, key, "")
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("%sは正のミリ秒で指定してください: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// getBool は真偽値を読み込む。
func getBool(lookup Lookup, key string, fallback bool) (bool, error) {
	v := getOr(lookup, key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%sは真偽値で指定してください: %q", key, v)
	}
	return b, nil
}

// getList はカンマ区切りの値を空要素を除いて読み込む。
func getList(lookup Lookup, key string, fallback []string) []string {
	v, ok := lookup(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
