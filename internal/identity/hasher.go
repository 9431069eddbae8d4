package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher はパスワードのハッシュ化と照合を行う。
type Hasher interface {
	Hash(password string) (string, error)
	// Compare はハッシュとパスワードが一致しなければErrInvalidCredentialsを返す。
	Compare(hash, password string) error
}

// BcryptHasher はbcryptによるHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はコストを指定してBcryptHasherを生成する。0以下なら既定のコストを使う。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// maxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const maxPasswordBytes = 72

// Hash はパスワードをハッシュ化する。72バイトを超える場合はErrPasswordTooLongを返す。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(b), nil
}

// Compare はハッシュとパスワードを照合する。
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("パスワードの照合に失敗: %w", err)
	}
	return nil
}
