// API Gatewayサービスのエントリポイント。
// 外部からアクセス可能な唯一のサービスであり、ACCESS_TOKEN Cookieを
// Authorizationヘッダーに変換して各バックエンドサービスへ転送する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/busgate/internal/config"
	"github.com/nao1215/busgate/internal/gateway"
	"github.com/nao1215/busgate/pkg/logging"
)

func main() {
	lookup, err := config.FileLookup(".env", os.LookupEnv)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗: %v", err)
	}

	cfg, err := config.LoadGateway(lookup)
	if err != nil {
		log.Fatalf("Gatewayの設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "gateway",
	})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	server := gateway.NewServer(cfg, logger)

	logger.Info("Gatewayサービスを起動します", "port", cfg.Port, "routes", len(cfg.Routes))
	if err := server.Run(); err != nil {
		logger.Error("Gatewayサービスの起動に失敗", "error", err)
		os.Exit(1)
	}
}
