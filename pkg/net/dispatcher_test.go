package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// ==================== 测试辅助 ====================

// stubProvider 直连提供者，记录故障上报次数
type stubProvider struct {
	mu      sync.Mutex
	proxy   *url.URL
	reports int
}

func (p *stubProvider) GetProxy(ctx context.Context, vendor string) (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxy, nil
}

func (p *stubProvider) ReportError(ctx context.Context, vendor string) {
	p.mu.Lock()
	p.reports++
	p.mu.Unlock()
}

func (p *stubProvider) reported() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reports
}

// ==================== 单元测试 ====================

func TestDispatcher_GetJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("user-agent = %s, want test-agent", ua)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"code": "A", "price": 10.5})
	}))
	defer ts.Close()

	d := NewDispatcher(&stubProvider{}, Options{UserAgent: "test-agent"})

	var out map[string]interface{}
	if err := d.GetJSON(context.Background(), "acme", ts.URL, &out); err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	if out["code"] != "A" {
		t.Errorf("code = %v, want A", out["code"])
	}
}

func TestDispatcher_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	provider := &stubProvider{}
	d := NewDispatcher(provider, Options{Backoff: time.Millisecond})

	var out map[string]interface{}
	err := d.GetJSON(context.Background(), "acme", ts.URL, &out)

	// 非 2xx 是数据层面的硬失败：不重试、不上报代理故障
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", se.StatusCode)
	}
	if provider.reported() != 0 {
		t.Errorf("reports = %d, want 0", provider.reported())
	}
}

func TestDispatcher_RetryExhausted(t *testing.T) {
	provider := &stubProvider{}
	d := NewDispatcher(provider, Options{MaxRetries: 2, Backoff: time.Millisecond})

	// 端口 1 直接拒连：每次尝试都是瞬态失败
	var out map[string]interface{}
	err := d.GetJSON(context.Background(), "acme", "http://127.0.0.1:1/x", &out)

	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransientError", err)
	}
	if te.Retries != 2 {
		t.Errorf("retries = %d, want 2", te.Retries)
	}
	// 每次剩余重试前都应上报一次，触发业务层轮换
	if provider.reported() != 2 {
		t.Errorf("reports = %d, want 2", provider.reported())
	}
}

func TestDispatcher_ContextCancel(t *testing.T) {
	provider := &stubProvider{}
	d := NewDispatcher(provider, Options{MaxRetries: 5, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out map[string]interface{}
		done <- d.GetJSON(ctx, "acme", "http://127.0.0.1:1/x", &out)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("取消后未及时返回")
	}
}
