// イベントストアサービスのエントリポイント。
// 各サービスが発行するドメインイベントを受け取り、追記のみで永続化する。
package main

import (
	"context"
	"log"
	"os"

	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/internal/eventstore"
	"github.com/nao1215/busgate/pkg/logging"
)

func main() {
	lookup, err := config.FileLookup(".env", os.LookupEnv)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗: %v", err)
	}

	cfg, err := config.LoadEventStore(lookup)
	if err != nil {
		log.Fatalf("イベントストアの設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "eventstore",
	})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	server, err := eventstore.NewServer(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("イベントストアサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	logger.Info("イベントストアサービスを起動します", "port", cfg.Port)
	if err := server.Run(); err != nil {
		logger.Error("イベントストアサービスの起動に失敗", "error", err)
		server.Close()
		os.Exit(1)
	}
}
