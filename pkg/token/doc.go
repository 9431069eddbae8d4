// Package token は認証トークンの署名鍵導出と、トークンの発行・検証を提供する。
//
// トークンはHS256で署名されたJWTであり、subject（メールアドレス）、発行日時、
// 有効期限の3つのクレームだけを持つ。サーバー側にセッションは保持せず、
// 有効性は署名と有効期限だけで判定する。そのため、各サービスは
// 認証ストアへの問い合わせなしに独立してトークンを検証できる。
package token
