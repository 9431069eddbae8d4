package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeUser はユーザーアカウントを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeUserCreated はアカウントが登録されたことを表す。
	TypeUserCreated Type = "UserCreated"
)

// Event はサービス間で通知される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// UserCreatedData はUserCreatedイベントのデータ。
// 他のサービスと共有するフィールド名に合わせてキャメルケースで出力する。
type UserCreatedData struct {
	// UserID は登録されたアカウントのID。
	UserID int64 `json:"userId"`
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はロール。
	Role string `json:"role"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `json:"createdAt"`
}
