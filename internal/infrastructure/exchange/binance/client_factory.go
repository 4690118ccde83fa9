package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fundarb/internal/infrastructure/exchange"
)

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign 生成 HMAC-SHA256 签名
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// APIClient 签名 REST 客户端
type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	now         func() time.Time
}

// PerpetualClient Binance U 本位合约下单与持仓，实现 port.TradingAdapter
type PerpetualClient struct {
	*APIClient
}

// NewPerpetualClient 创建已认证的合约客户端
func NewPerpetualClient(opts exchange.Options, creds exchange.Credentials) (*PerpetualClient, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, errors.New("binance: api key and secret required")
	}
	base := strings.TrimRight(opts.RestURL, "/")
	if base == "" {
		base = DefaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = exchange.DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &PerpetualClient{APIClient: &APIClient{
		credentials: NewCredentials(creds.APIKey, creds.APISecret),
		httpClient:  httpClient,
		limiter:     limiter,
		baseURL:     base,
		now:         time.Now,
	}}, nil
}
