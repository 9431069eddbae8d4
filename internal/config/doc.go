// Package config は各サービスの起動時設定を環境変数と設定ファイルから読み込む。
//
// 設定は起動時に1回だけ読み込み、各コンポーネントへ明示的に渡す。
// 環境変数が最優先で、次に .env ファイル、最後に既定値が使われる。
// ゲートウェイのルートテーブルはYAMLファイルで上書きできる。
package config
