package identity

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// TestBcryptHasher はBcryptHasherを検証する。
func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash()でエラーが発生: %v", err)
	}
	if hash == "pw123" {
		t.Fatal("ハッシュがパスワードと同じ")
	}

	t.Run("正しいパスワードで照合に成功すること", func(t *testing.T) {
		t.Parallel()

		if err := h.Compare(hash, "pw123"); err != nil {
			t.Errorf("Compare()でエラーが発生: %v", err)
		}
	})

	t.Run("誤ったパスワードはErrInvalidCredentialsになること", func(t *testing.T) {
		t.Parallel()

		if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Compare() err = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("不正なハッシュはErrInvalidCredentials以外のエラーになること", func(t *testing.T) {
		t.Parallel()

		err := h.Compare("not-a-hash", "pw123")
		if err == nil || errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Compare() err = %v, want 照合エラー", err)
		}
	})

	t.Run("72バイトを超えるパスワードはErrPasswordTooLongになること", func(t *testing.T) {
		t.Parallel()

		// 30文字だが90バイト
		if _, err := h.Hash(strings.Repeat("あ", 30)); !errors.Is(err, ErrPasswordTooLong) {
			t.Errorf("Hash() err = %v, want ErrPasswordTooLong", err)
		}
		if _, err := h.Hash(strings.Repeat("a", 72)); err != nil {
			t.Errorf("72バイトのHash()でエラーが発生: %v", err)
		}
	})

	t.Run("コスト未指定の場合は既定のコストになること", func(t *testing.T) {
		t.Parallel()

		if got := NewBcryptHasher(0).cost; got != bcrypt.DefaultCost {
			t.Errorf("cost = %d, want %d", got, bcrypt.DefaultCost)
		}
	})
}
