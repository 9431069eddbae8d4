// 認証サービスのエントリポイント。
// ユーザー登録、ログイン、トークンの発行と検証、リフレッシュを担当する。
package main

import (
	"context"
	"log"
	"os"

	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/internal/identity"
	"github.com/nao1215/busgate/pkg/logging"
)

func main() {
	lookup, err := config.FileLookup(".env", os.LookupEnv)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗: %v", err)
	}

	cfg, err := config.LoadIdentity(lookup)
	if err != nil {
		log.Fatalf("認証サービスの設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "identity",
	})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	server, err := identity.NewServer(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("認証サーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	logger.Info("認証サービスを起動します", "port", cfg.Port)
	if err := server.Run(); err != nil {
		logger.Error("認証サービスの起動に失敗", "error", err)
		server.Close()
		os.Exit(1)
	}
}
