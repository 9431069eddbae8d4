package logging

import (
	"log/slog"
	"slices"
	"sort"
)

// Masked はマスクされた値の表示文字列。
const Masked = "[MASKED]"

// Allowed はfieldsのうち許可リストにあるキーだけを値のまま出力し、
// それ以外のキーはMaskedに置き換えたslogのグループ属性を返す。
// パスワードのように載せてはいけない値を、フィールド名の推測ではなく
// 明示的な許可リストで除外する。
func Allowed(key string, fields map[string]any, allow ...string) slog.Attr {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]any, 0, len(names))
	for _, name := range names {
		if slices.Contains(allow, name) {
			attrs = append(attrs, slog.Any(name, fields[name]))
			continue
		}
		attrs = append(attrs, slog.String(name, Masked))
	}
	return slog.Group(key, attrs...)
}
