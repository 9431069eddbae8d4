// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 各バックエンドサービスの入口で行うトークン検証（Authenticate）、
// ゲートウェイと共有する資格情報の解決（ResolveCredential）、
// 相関IDの付与、リクエストログ、パニックリカバリ、CORS設定を含む。
package middleware
