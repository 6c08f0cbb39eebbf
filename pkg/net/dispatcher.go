package net

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProxyProvider 定义“提供代理”的行为标准
type ProxyProvider interface {
	// GetProxy 根据业务唯一键 (vendor) 获取一个可用的代理地址
	// 返回 nil 表示直连
	GetProxy(ctx context.Context, vendor string) (*url.URL, error)

	// ReportError 上报该业务键对应的代理已失效
	// 业务层实现需在此方法中执行：轮换代理、标记故障等
	ReportError(ctx context.Context, vendor string)
}

// StatusError 上游返回非 2xx 状态
// 属于数据层面的硬失败，调度器不重试
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.URL)
}

// TransientError 连接/代理层面的瞬态失败，重试额度耗尽后返回
type TransientError struct {
	URL     string
	Retries int
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d retries: %v", e.Retries, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Dispatcher 网络调度器 (通用组件)
type Dispatcher interface {
	// Send 发送 HTTP 请求
	// vendor: 业务实体的唯一标识
	Send(ctx context.Context, vendor string, req *http.Request) (*http.Response, error)

	// GetJSON 请求并把响应体解析为 JSON 文档
	// 瞬态失败按调度器的重试策略处理，非 2xx 返回 *StatusError
	GetJSON(ctx context.Context, vendor, rawurl string, out interface{}) error
}

// Options 调度器参数
type Options struct {
	MaxRetries int           // 瞬态失败重试上限
	Backoff    time.Duration // 首次重试间隔，之后逐次翻倍
	RateLimit  float64       // 每秒请求数，<=0 不限速
	Timeout    time.Duration
	UserAgent  string
}

// httpDispatcher 是 Dispatcher 接口的具体实现
// 注意：它是私有的，外部只能通过 NewDispatcher 获取接口
type httpDispatcher struct {
	provider       ProxyProvider
	transportCache sync.Map
	limiter        *rate.Limiter
	maxRetries     int
	backoff        time.Duration
	timeout        time.Duration
	userAgent      string
}

var _ Dispatcher = (*httpDispatcher)(nil)

func NewDispatcher(provider ProxyProvider, opts Options) Dispatcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &httpDispatcher{
		provider:   provider,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
	}
}

// Send 发送 HTTP 请求 (自动处理限速、重试与代理切换)
// 重试间隔逐次翻倍；额度耗尽返回 *TransientError
func (d *httpDispatcher) Send(ctx context.Context, vendor string, req *http.Request) (*http.Response, error) {
	var lastErr error

	if d.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	for i := 0; i <= d.maxRetries; i++ {
		// 限速闸口：所有出站请求统一节流
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		// 1. 通过接口回调，获取代理 (轮换逻辑在业务层实现)
		proxyURL, err := d.provider.GetProxy(ctx, vendor)
		if err != nil {
			return nil, fmt.Errorf("proxy provider error: %v", err)
		}

		// 2. 获取/复用 Transport
		client := d.getClient(proxyURL)

		// 3. 发送请求
		resp, err := client.Do(req.WithContext(ctx))

		// 成功
		if err == nil {
			return resp, nil
		}

		// 失败
		lastErr = err

		// 还有重试机会时，报错并触发切换，随后按指数退避等待
		if i < d.maxRetries {
			// 回调业务层：这个 Key 对应的代理坏了，请处理
			d.provider.ReportError(ctx, vendor)
			// 清理本地 Transport 缓存
			if proxyURL != nil {
				d.transportCache.Delete(proxyURL.String())
			}

			wait := d.backoff << uint(i)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, &TransientError{URL: req.URL.String(), Retries: d.maxRetries, Err: lastErr}
}

// GetJSON GET 请求并解析 JSON
func (d *httpDispatcher) GetJSON(ctx context.Context, vendor, rawurl string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}

	resp, err := d.Send(ctx, vendor, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, URL: rawurl, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// getClient 内部复用逻辑
func (d *httpDispatcher) getClient(proxyURL *url.URL) *http.Client {
	if proxyURL == nil {
		return &http.Client{Timeout: d.timeout}
	}

	// 缓存 Key: "http://user:pass@ip:port"
	cacheKey := proxyURL.String()

	if val, ok := d.transportCache.Load(cacheKey); ok {
		return &http.Client{
			Transport: val.(*http.Transport),
			Timeout:   d.timeout,
		}
	}

	// 缓存未命中，创建新 Transport
	tr := &http.Transport{
		Proxy:           http.ProxyURL(proxyURL),
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // 可选
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}

	// 存入缓存 (LoadOrStore 防止并发重复创建)
	actual, _ := d.transportCache.LoadOrStore(cacheKey, tr)

	return &http.Client{
		Transport: actual.(*http.Transport),
		Timeout:   d.timeout,
	}
}
