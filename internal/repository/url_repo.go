package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"derzan_scraper_v1/internal/model"
)

// ==================== 仓储接口 ====================

// ProductURLRepository 商品链接仓储接口（URL 边界集）
// 状态流转只允许抓取管线的提交步骤调用
type ProductURLRepository interface {
	// BulkCreate 批量入库，状态 PENDING；url 全局唯一冲突静默跳过（去重机制，非错误）
	BulkCreate(ctx context.Context, vendorID primitive.ObjectID, urls []string) (*BulkResult, error)
	// EachPending 流式遍历某供应商的待抓取链接（游标，不整体物化）
	EachPending(ctx context.Context, vendorID primitive.ObjectID, fn func(u model.ProductURL) error) error
	// UpdateStatusByURLs 按 url 值批量流转状态
	UpdateStatusByURLs(ctx context.Context, urls []string, status int) error
	CountByStatus(ctx context.Context, vendorID primitive.ObjectID, status int) (int64, error)
	// DeleteByVendor 全量重抓前的破坏性清理，非事务
	DeleteByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error)
}

// ==================== 仓储实现 ====================

type productURLRepo struct {
	col *mongo.Collection
}

// NewProductURLRepository 创建商品链接仓储
func NewProductURLRepository(db *mongo.Database) ProductURLRepository {
	return &productURLRepo{col: db.Collection("product_urls")}
}

func (r *productURLRepo) BulkCreate(ctx context.Context, vendorID primitive.ObjectID, urls []string) (*BulkResult, error) {
	if len(urls) == 0 {
		return &BulkResult{}, nil
	}

	docs := make([]interface{}, 0, len(urls))
	for _, u := range urls {
		docs = append(docs, model.ProductURL{
			VendorID: vendorID,
			URL:      u,
			Status:   model.URLStatusPending,
		})
	}

	// 无序写入：单条唯一键冲突不阻断其余文档
	_, err := r.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	dups, err := duplicateCount(err)
	if err != nil {
		return nil, err
	}

	return &BulkResult{
		Submitted:  len(urls),
		Inserted:   len(urls) - dups,
		Duplicates: dups,
	}, nil
}

func (r *productURLRepo) EachPending(ctx context.Context, vendorID primitive.ObjectID, fn func(u model.ProductURL) error) error {
	filter := bson.M{"vendor_id": vendorID, "status": model.URLStatusPending}
	cursor, err := r.col.Find(ctx, filter, options.Find().SetBatchSize(1000))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var u model.ProductURL
		if err := cursor.Decode(&u); err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *productURLRepo) UpdateStatusByURLs(ctx context.Context, urls []string, status int) error {
	if len(urls) == 0 {
		return nil
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"url": bson.M{"$in": urls}},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

func (r *productURLRepo) CountByStatus(ctx context.Context, vendorID primitive.ObjectID, status int) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"vendor_id": vendorID, "status": status})
}

func (r *productURLRepo) DeleteByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"vendor_id": vendorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
