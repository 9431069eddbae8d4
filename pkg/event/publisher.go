package event

import (
	"context"
	"fmt"

	"github.com/nao1215/busgate/pkg/httpclient"
)

// Publisher はイベントを外部へ通知する。
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}

// NopPublisher は何もしないPublisher。イベント受信先が設定されていない場合に使う。
type NopPublisher struct{}

// Publish はイベントを破棄する。
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// eventsPath はイベント受信先のエンドポイント。
const eventsPath = "/events"

// HTTPPublisher はイベントをHTTPでPOSTするPublisher。
type HTTPPublisher struct {
	// client はイベント受信先へのHTTPクライアント。
	client *httpclient.Client
}

// NewHTTPPublisher はイベント受信先のクライアントからHTTPPublisherを生成する。
func NewHTTPPublisher(client *httpclient.Client) *HTTPPublisher {
	return &HTTPPublisher{client: client}
}

// Publish はイベントを受信先の /events にPOSTする。
func (p *HTTPPublisher) Publish(ctx context.Context, ev *Event) error {
	if err := p.client.PostJSON(ctx, eventsPath, ev, nil); err != nil {
		return fmt.Errorf("イベントの送信に失敗: event_type=%s: %w", ev.EventType, err)
	}
	return nil
}
