package adapter

import (
	"errors"
	"fmt"
	"sort"

	"derzan_scraper_v1/internal/model"
)

// RawRecord 上游接口返回的原始 JSON 文档
type RawRecord = map[string]interface{}

// ErrMissingField 必填字段缺失（数据性错误：记录丢弃，不重试）
var ErrMissingField = errors.New("missing required field")

// ==================== 适配器接口 ====================

// Adapter 供应商适配器
// 把某一上游站点的 JSON 形状映射为目录记录，纯映射、无副作用；
// 管线本身不感知任何供应商字段
type Adapter interface {
	// Vendor 供应商档案（首跑时按 name 建档）
	Vendor() model.Vendor

	// --- 发现阶段 ---

	// MenuURL 类目菜单接口地址
	MenuURL() string
	// CategoryURLs 从菜单载荷提取类目列表页地址
	CategoryURLs(menu RawRecord) []string
	// PageURL 类目列表的第 page 页地址（page 从 1 开始）
	PageURL(categoryURL string, page int) string
	// PerPage 列表页单页条数（分页数 = 报告总量 / PerPage）
	PerPage() int
	// ListingTotal 列表载荷报告的商品总量
	ListingTotal(listing RawRecord) int
	// ListingProductURLs 从单个列表页载荷提取商品详情链接
	ListingProductURLs(listing RawRecord) []string

	// --- 详情阶段 ---

	// DetailURL 按商品编码拼详情接口地址
	DetailURL(code string) string
	// VariantCodes 详情载荷声明的变体组成员编码；无变体返回空
	VariantCodes(payload RawRecord) []string
	// ParseProduct 详情载荷 -> 一条商品记录；必填字段缺失返回 ErrMissingField
	ParseProduct(payload RawRecord) (*model.Product, error)
}

// ==================== 注册表 ====================

var registry = map[string]func() Adapter{}

// Register 注册供应商适配器（在适配器文件的 init 中调用）
func Register(name string, factory func() Adapter) {
	registry[name] = factory
}

// Get 按供应商名称取适配器
func Get(name string) (Adapter, error) {
	factory, ok := registry[model.NormalizeVendorName(name)]
	if !ok {
		return nil, fmt.Errorf("未注册的供应商适配器: %s", name)
	}
	return factory(), nil
}

// Names 已注册的供应商名称
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
