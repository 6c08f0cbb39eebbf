package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vendor 上游供应商（抓取来源站点）
// name 全局唯一，统一小写存储
type Vendor struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Nickname string             `bson:"nickname,omitempty" json:"nickname"`
	Category string             `bson:"category,omitempty" json:"category"`
	Language string             `bson:"language,omitempty" json:"language"` // 源站语言，默认 tr
}

// NormalizeVendorName 供应商名称统一小写
func NormalizeVendorName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
