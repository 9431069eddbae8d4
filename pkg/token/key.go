package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// MinKeyLength はHMAC-SHA-256署名に必要な鍵の最小バイト長。
const MinKeyLength = 32

// Key はトークン署名に使用する対称鍵。
// プロセス起動時に一度だけ導出され、以後は変更されない。
type Key struct {
	// b は鍵のバイト列。外部から書き換えられないよう非公開にしている。
	b []byte
}

// DeriveKey は設定された秘密文字列から署名鍵を導出する。
//
// secretをbase64として解釈し、デコードに成功して32バイト以上あればそれを鍵とする。
// デコードに失敗した場合、または32バイト未満の場合は、secretの生バイト列の
// SHA-256ハッシュを鍵とする。どのような入力でも有効長の鍵が得られる代わりに、
// base64として正しいが短い値は「base64の中身」ではなく「文字列そのもの」の
// ハッシュになる。これは意図した挙動であり、既存デプロイとの鍵互換のために変更しないこと。
func DeriveKey(secret string) Key {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err == nil && len(decoded) >= MinKeyLength {
		return Key{b: decoded}
	}
	sum := sha256.Sum256([]byte(secret))
	return Key{b: sum[:]}
}

// Bytes は鍵のバイト列のコピーを返す。
func (k Key) Bytes() []byte {
	out := make([]byte, len(k.b))
	copy(out, k.b)
	return out
}

// Len は鍵のバイト長を返す。
func (k Key) Len() int {
	return len(k.b)
}
