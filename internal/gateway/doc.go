// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// ルートテーブルに従って /api/<service>/** を各バックエンドに転送する。
// 転送前にEdgeForwarderが相関IDを確定させ、ACCESS_TOKEN Cookieを
// Authorization: Bearer ヘッダーに変換する。ゲートウェイ自身はトークンを
// 検証せず、リクエストを拒否することもない。認可は転送先のサービスが行う。
package gateway
