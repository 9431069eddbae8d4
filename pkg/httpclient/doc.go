// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// ゲートウェイから各バックエンドへのリクエスト転送と、
// 認証サービスからイベント受信先へのイベント送信で使用する。
// contextに相関IDがあれば自動的にX-Correlation-IDヘッダーとして伝播する。
package httpclient
