package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// VariantFeature 变体属性（有序键值对，如 颜色/尺寸）
type VariantFeature struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

// Translation 单一目标语言的翻译结果
// 整体替换写入 translation.<lang>，不做字段级合并
type Translation struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
}

// Product 目录商品
// 唯一性约束：(vendor_id, code)，提交时由唯一索引兜底
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VendorID     primitive.ObjectID `bson:"vendor_id" json:"vendor_id"`
	Code         string             `bson:"code" json:"code"`
	Name         string             `bson:"name" json:"name"`
	MainCategory string             `bson:"main_category,omitempty" json:"main_category"`
	Category     string             `bson:"category,omitempty" json:"category"` // 类目路径，/// 分隔
	Price        float64            `bson:"price" json:"price"`
	ListPrice    float64            `bson:"list_price,omitempty" json:"list_price"`
	Currency     string             `bson:"currency,omitempty" json:"currency"`
	URL          string             `bson:"url" json:"url"`

	// --- 变体 ---
	VariantGroup    string           `bson:"variant_group,omitempty" json:"variant_group"` // 同组变体共享的组标识
	VariantFeatures []VariantFeature `bson:"variant_features,omitempty" json:"variant_features"`

	// --- 描述与图片 ---
	Description string   `bson:"description,omitempty" json:"description"` // 标记语言片段
	Images      []string `bson:"images,omitempty" json:"images"`

	// --- 本地化 ---
	// 语言代码 -> 翻译结果；本地化子系统独占写入
	Translation map[string]Translation `bson:"translation,omitempty" json:"translation,omitempty"`
}
