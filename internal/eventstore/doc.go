// Package eventstore はイベントストアサービスの内部実装を提供する。
//
// 認証サービスなどが発行するドメインイベント（UserCreatedなど）を受け取り、
// 追記のみで永続化する。イベントは不変で、同じAggregateの同じバージョンは
// 1件しか保存できない。
//
// 主な機能:
//   - イベントの追記（Append）
//   - AggregateIDによるイベント取得
//   - イベントタイプによるイベント取得
//   - 日時指定によるイベント取得
package eventstore
