package identity

import "errors"

var (
	// ErrNotFound は該当するアカウントが存在しないことを示す。
	ErrNotFound = errors.New("ユーザーが見つかりません")
	// ErrInvalidCredentials はパスワードが一致しないことを示す。
	ErrInvalidCredentials = errors.New("パスワードが正しくありません")
	// ErrConflict はメールアドレスまたはユーザー名が既に使われていることを示す。
	ErrConflict = errors.New("既に登録されています")
	// ErrInactive はアカウントが無効化されていることを示す。
	ErrInactive = errors.New("アカウントが無効です")
	// ErrPasswordTooLong はパスワードがbcryptで扱える72バイトを超えていることを示す。
	ErrPasswordTooLong = errors.New("パスワードは72バイト以内で指定してください")
)
