package service

import (
	"fmt"
	"strings"
)

// ProviderError 翻译服务返回非成功状态
// 整个翻译调用失败，对应条目不写入翻译记忆
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("翻译服务错误 [%d]: %s", e.StatusCode, e.Body)
}

// BatchTooLarge 批量元素数超过服务上限（可二分重试的拒绝）
// 微软翻译的错误码为 400050 "too many elements"
func (e *ProviderError) BatchTooLarge() bool {
	return strings.Contains(e.Body, "too many elements") || strings.Contains(e.Body, "400050")
}
