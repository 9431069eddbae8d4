package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidData はイベントのdataがイベント種別のスキーマに合わないことを示す。
var ErrInvalidData = errors.New("イベントデータが不正です")

// NewUserCreated はアカウント登録を表すUserCreatedイベントを組み立てる。
// AggregateIDはアカウントIDの10進表記、バージョンは1になる。
func NewUserCreated(data UserCreatedData, now time.Time) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("UserCreatedデータのエンコードに失敗: %w", err)
	}
	return &Event{
		ID:            uuid.NewString(),
		AggregateID:   strconv.FormatInt(data.UserID, 10),
		AggregateType: AggregateTypeUser,
		EventType:     TypeUserCreated,
		Data:          raw,
		Version:       1,
		CreatedAt:     now.UTC(),
	}, nil
}

// DecodeData はイベントのdataをTとして読み取る。
func DecodeData[T any](e *Event) (*T, error) {
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, e.EventType, err)
	}
	return &v, nil
}

// CheckData はdataがJSONであり、既知のイベント種別ならその型として読み取れることを確認する。
// 未知の種別はJSONであることだけを確認する。
func CheckData(e *Event) error {
	if !json.Valid(e.Data) {
		return fmt.Errorf("%w: JSONではありません", ErrInvalidData)
	}
	switch e.EventType {
	case TypeUserCreated:
		_, err := DecodeData[UserCreatedData](e)
		return err
	}
	return nil
}
