package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/busgate/pkg/logging"
)

// DefaultTimeout はリクエスト全体のタイムアウトの既定値。
const DefaultTimeout = 30 * time.Second

// headerCorrelationID は相関IDを伝播するHTTPヘッダー。
const headerCorrelationID = "X-Correlation-ID"

// ErrStatus は接続先が2xx以外のステータスを返したことを示す。
var ErrStatus = errors.New("HTTPエラー")

// Client はサービス間通信用のHTTPクライアント。
// 接続先サービスごとに1つ生成し、リダイレクトは追跡せずそのまま呼び出し元に返す。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTransport は内部で使用するRoundTripperを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://identity:8081"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.Forward(ctx, http.MethodPost, path, header, bodyReader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status=%d, body=%s", ErrStatus, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// Forward はbaseURL+pathAndQueryに対して任意のメソッドでリクエストを送信し、
// レスポンスをそのまま返す。ステータスコードの解釈は呼び出し元が行い、
// レスポンスボディのCloseも呼び出し元の責任とする。
// headerはそのまま送信され、相関IDが含まれていなければcontextの値を付与する。
// headerのContent-Lengthが有効な値であればボディ長として使う。
func (c *Client) Forward(ctx context.Context, method, pathAndQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
		if n, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
			req.ContentLength = n
			if n == 0 {
				req.Body = http.NoBody
			}
		}
	}
	if req.Header.Get(headerCorrelationID) == "" {
		if id := logging.CorrelationID(ctx); id != "" {
			req.Header.Set(headerCorrelationID, id)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	return resp, nil
}
