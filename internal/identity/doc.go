// Package identity は認証サービスを実装する。
//
// アカウントの登録とログイン、トークンの発行と検証、プロフィールの参照を担当する。
// アカウントはSQLiteに保存し、パスワードはbcryptでハッシュ化する。
// 発行したトークンはCookieとレスポンスボディの両方でクライアントに返す。
//
// エンドポイント:
//   - POST /auth/login    : ログイン
//   - POST /auth/register : アカウント登録
//   - GET  /auth/profile  : 認証済みアカウントのプロフィール
//   - POST /auth/logout   : Cookieの削除
//   - GET  /auth/validate : トークンの検査（他サービス向け）
//   - POST /auth/refresh  : リフレッシュトークンによるアクセストークンの再発行
package identity
