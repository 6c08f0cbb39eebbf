package adapter

import (
	"fmt"
	"strings"

	"derzan_scraper_v1/internal/model"
)

func init() {
	Register("vivense", func() Adapter { return &vivenseAdapter{} })
}

// vivenseAdapter Vivense 家具站适配器
// 详情载荷形如 {"items":[{...}]}，商品编码字段为 vsin
type vivenseAdapter struct{}

var vivenseCurrencies = map[string]string{"TRY": "TL"}

func (a *vivenseAdapter) Vendor() model.Vendor {
	return model.Vendor{
		Name:     "vivense",
		Nickname: "Mobilya",
		Category: "Ev ve Bahçe / Mobilya",
		Language: "tr",
	}
}

// ==================== 发现阶段 ====================

func (a *vivenseAdapter) MenuURL() string {
	return "https://app.vivense.com/menu"
}

func (a *vivenseAdapter) CategoryURLs(menu RawRecord) []string {
	var urls []string
	for _, v := range searchNested(menu, "link") {
		link, _ := v.(map[string]interface{})
		if link == nil {
			continue
		}
		alias := getString(link, "alias")
		vsin := getString(link, "params", "vsin")
		if vsin == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf("https://app.vivense.com/Products/listing/search/%s-c-%s", alias, vsin))
	}
	return urls
}

func (a *vivenseAdapter) PageURL(categoryURL string, page int) string {
	return fmt.Sprintf("%s?page=%d", categoryURL, page)
}

func (a *vivenseAdapter) PerPage() int { return 32 }

func (a *vivenseAdapter) ListingTotal(listing RawRecord) int {
	total, _ := getFloat(listing, "size")
	return int(total)
}

func (a *vivenseAdapter) ListingProductURLs(listing RawRecord) []string {
	var urls []string
	for _, v := range getSlice(listing, "items") {
		item, _ := v.(map[string]interface{})
		if vsin := getString(item, "vsin"); vsin != "" {
			urls = append(urls, a.DetailURL(vsin))
		}
	}
	return urls
}

// ==================== 详情阶段 ====================

func (a *vivenseAdapter) DetailURL(code string) string {
	return fmt.Sprintf("https://app.vivense.com/products/vsin/%s", code)
}

func (a *vivenseAdapter) VariantCodes(payload RawRecord) []string {
	item := firstMap(getSlice(payload, "items"))
	if item == nil {
		return nil
	}
	var codes []string
	for _, v := range getSlice(item, "variantGroup", "products") {
		p, _ := v.(map[string]interface{})
		if vsin := getString(p, "vsin"); vsin != "" {
			codes = append(codes, vsin)
		}
	}
	return codes
}

func (a *vivenseAdapter) ParseProduct(payload RawRecord) (*model.Product, error) {
	item := firstMap(getSlice(payload, "items"))
	if item == nil {
		return nil, fmt.Errorf("items: %w", ErrMissingField)
	}

	code := getString(item, "vsin")
	if code == "" {
		return nil, fmt.Errorf("vsin: %w", ErrMissingField)
	}
	name := getString(item, "title", "tr")
	if name == "" {
		return nil, fmt.Errorf("title.tr: %w", ErrMissingField)
	}

	price0 := firstMap(getSlice(item, "siteData", "prices"))
	price, ok := getFloat(price0, "unitPrice")
	if !ok {
		return nil, fmt.Errorf("siteData.prices.unitPrice: %w", ErrMissingField)
	}
	listPrice, ok := getFloat(price0, "generalMarketPrice")
	if !ok || listPrice == 0 {
		listPrice = price
	}

	p := &model.Product{
		Code:         code,
		Name:         name,
		URL:          a.DetailURL(code),
		Price:        price,
		ListPrice:    listPrice,
		Currency:     vivenseCurrencies[getString(price0, "currencyCode")],
		VariantGroup: getString(item, "variantId"),
	}

	// 类目路径：面包屑去掉首项
	var crumbs []string
	for i, v := range getSlice(item, "breadcrumbs") {
		if i == 0 {
			continue
		}
		crumb, _ := v.(map[string]interface{})
		if title := getString(crumb, "title", "tr"); title != "" {
			crumbs = append(crumbs, title)
		}
	}
	p.Category = strings.Join(crumbs, "///")

	for _, v := range getSlice(item, "media") {
		m, _ := v.(map[string]interface{})
		if file := getString(m, "newFileName"); file != "" {
			p.Images = append(p.Images, "https://img.vivense.com/"+file)
		}
	}

	p.VariantFeatures = a.parseVariantFeatures(item, code)
	p.Description = a.buildDescription(item)

	return p, nil
}

// parseVariantFeatures 从变体组里捞出当前编码对应的属性键值
func (a *vivenseAdapter) parseVariantFeatures(item RawRecord, code string) []model.VariantFeature {
	var features []model.VariantFeature
	for _, g := range getSlice(item, "variantGroup", "groups") {
		group, _ := g.(map[string]interface{})
		attr := getMap(group, "attribute")
		key := getString(attr, "title", "tr")
		attrType := getString(attr, "attributeType")

		for _, pv := range getSlice(group, "products") {
			gp, _ := pv.(map[string]interface{})
			if getString(gp, "product", "vsin") != code {
				continue
			}
			value := vivenseAttributeValue(attrType, getSlice(gp, "attributeValues"))
			if value != "" {
				features = append(features, model.VariantFeature{Key: key, Value: value})
			}
		}
	}
	return features
}

// vivenseAttributeValue 按属性类型取首个取值的展示文本
func vivenseAttributeValue(attrType string, values []interface{}) string {
	v0 := firstMap(values)
	if v0 == nil {
		return ""
	}
	switch attrType {
	case "color":
		return getString(v0, "color", "title", "tr")
	case "text":
		return getString(v0, "text", "tr")
	case "boolean":
		if b, _ := v0["boolean"].(bool); b {
			return "Evet"
		}
		return "Hayır"
	case "numberDouble":
		if f, ok := getFloat(v0, "numberDouble"); ok {
			if f == float64(int64(f)) {
				return fmt.Sprintf("%d", int64(f))
			}
			return fmt.Sprintf("%v", f)
		}
	}
	return ""
}

// buildDescription 属性表拼为描述片段（站点模板的精简版）
func (a *vivenseAdapter) buildDescription(item RawRecord) string {
	var rows []string
	for _, v := range getSlice(item, "attributes") {
		attr, _ := v.(map[string]interface{})
		key := getString(attr, "title", "tr")
		value := vivenseAttributeValue(getString(attr, "type"), getSlice(attr, "values"))
		if key == "" || value == "" {
			continue
		}
		rows = append(rows, fmt.Sprintf("<tr><th>%s</th><td>%s</td></tr>", key, value))
	}
	if len(rows) == 0 {
		return ""
	}
	return fmt.Sprintf(`<div class="panel-body"><table class="table"><tbody class="desctab">%s</tbody></table></div>`,
		strings.Join(rows, ""))
}
