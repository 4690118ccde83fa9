package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout 单次 REST 请求超时
const DefaultTimeout = 10 * time.Second

// Options 交易所适配器构造参数
type Options struct {
	RestURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client // 为空时按 Timeout 新建
}

// RESTClient 带限频的 JSON REST 客户端，各交易所适配器共用
type RESTClient struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewRESTClient 创建 REST 客户端，RequestsPerSecond <= 0 表示不限频
func NewRESTClient(name, defaultURL string, opts Options) *RESTClient {
	base := strings.TrimRight(strings.TrimSpace(opts.RestURL), "/")
	if base == "" {
		base = defaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &RESTClient{name: name, baseURL: base, client: client, limiter: limiter}
}

// BaseURL returns the resolved base url.
func (c *RESTClient) BaseURL() string { return c.baseURL }

// GetJSON GET path?query 并解码 JSON
func (c *RESTClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := BuildQueryURL(c.baseURL, path, query.Encode())
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// PostJSON POST JSON body 并解码 JSON
func (c *RESTClient) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	endpoint, err := BuildQueryURL(c.baseURL, path, "")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RESTClient) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s api error: %d %s", c.name, resp.StatusCode, string(BytesTrimSpace(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", c.name, err)
	}
	return nil
}

// ParseFloat 解析交易所返回的字符串数值，空串视为 0
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// BytesTrimSpace trims whitespace from byte slice
func BytesTrimSpace(b []byte) []byte {
	return bytes.TrimSpace(b)
}

// BuildQueryURL builds a URL with query parameters
func BuildQueryURL(base, path, query string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query
	return u.String(), nil
}

// Credentials API 凭证
type Credentials struct {
	APIKey    string
	APISecret string
}
