package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/busgate/pkg/logging"
)

// HeaderCorrelationID はサービス間でリクエストを追跡するための相関IDヘッダー。
const HeaderCorrelationID = "X-Correlation-ID"

// correlationIDLength は生成する相関IDの長さ。
const correlationIDLength = 8

// NewCorrelationID はUUIDの先頭8文字から新しい相関IDを生成する。
func NewCorrelationID() string {
	return uuid.New().String()[:correlationIDLength]
}

// AttachCorrelationID はリクエストの相関IDを確定させて返す。
// 受信ヘッダーに空でない値があればそのまま使い、無ければ新規に生成する。
// 確定したIDはリクエストヘッダー、レスポンスヘッダー、ロギング用のcontextに設定する。
func AttachCorrelationID(c *gin.Context) string {
	id := c.GetHeader(HeaderCorrelationID)
	if strings.TrimSpace(id) == "" {
		id = NewCorrelationID()
	}
	c.Request.Header.Set(HeaderCorrelationID, id)
	c.Header(HeaderCorrelationID, id)
	c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), id))
	return id
}

// Correlation は相関IDを確定させるGinミドルウェアを返す。
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		AttachCorrelationID(c)
		c.Next()
	}
}
