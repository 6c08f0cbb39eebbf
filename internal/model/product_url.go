package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// ==================== URL 状态 ====================

// 商品链接抓取状态
// 状态流转由抓取管线独占：入库 PENDING -> 提交批次 SCRAPED / 重试耗尽 FAILED
const (
	URLStatusFailed  = -1 // 重试耗尽，永久失败
	URLStatusPending = 0  // 待抓取
	URLStatusScraped = 1  // 已抓取（至少产出一条商品记录）
)

// ProductURL 发现阶段入库的商品详情链接
// url 全局唯一（跨供应商去重）
type ProductURL struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VendorID primitive.ObjectID `bson:"vendor_id" json:"vendor_id"`
	URL      string             `bson:"url" json:"url"`
	Status   int                `bson:"status" json:"status"`
}
