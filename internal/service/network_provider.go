package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// NetworkProvider 代理池提供者，实现 net.ProxyProvider
// 维护一个配置的代理地址池；调度器上报故障时轮换到下一个，
// 等价于给后续请求换一个全新的网络身份
type NetworkProvider struct {
	proxies []*url.URL
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	enabled bool
	cursor  atomic.Uint64
}

// NewNetworkProvider 创建代理池提供者
func NewNetworkProvider(rawURLs []string, enabled bool, logger *zap.SugaredLogger) (*NetworkProvider, error) {
	proxies := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("代理地址非法 %s: %w", raw, err)
		}
		proxies = append(proxies, u)
	}

	return &NetworkProvider{
		proxies: proxies,
		enabled: enabled,
		logger:  logger,
	}, nil
}

// SetEnabled 运行级别的代理开关（管线入口的 useProxy 参数）
func (p *NetworkProvider) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// GetProxy 取当前代理；未启用或池为空时返回 nil 表示直连
func (p *NetworkProvider) GetProxy(ctx context.Context, vendor string) (*url.URL, error) {
	p.mu.RLock()
	enabled := p.enabled
	p.mu.RUnlock()

	if !enabled || len(p.proxies) == 0 {
		return nil, nil
	}
	return p.proxies[p.cursor.Load()%uint64(len(p.proxies))], nil
}

// ReportError 轮换到池中下一个代理
func (p *NetworkProvider) ReportError(ctx context.Context, vendor string) {
	if len(p.proxies) == 0 {
		return
	}
	next := p.cursor.Add(1)
	p.logger.Infof("[Network] %s: 轮换代理 -> #%d", vendor, next%uint64(len(p.proxies)))
}
