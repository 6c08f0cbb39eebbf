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

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// BulkCreate 批量入库；(vendor_id, code) 唯一键冲突计入 Duplicates，不视为失败
	BulkCreate(ctx context.Context, vendorID primitive.ObjectID, products []model.Product) (*BulkResult, error)
	CountByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error)
	// EachUntranslated 流式遍历缺少 translation.<lang> 的商品，limit<=0 不限量
	EachUntranslated(ctx context.Context, vendorID primitive.ObjectID, lang string, limit int64, fn func(p model.Product) error) error
	// SetTranslation 整体替换写入单一语言的翻译（本地化子系统独占）
	SetTranslation(ctx context.Context, id primitive.ObjectID, lang string, tr model.Translation) error
	// DeleteByVendor 全量重抓前的破坏性清理，非事务
	DeleteByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error)
}

// ==================== 仓储实现 ====================

type productRepo struct {
	col *mongo.Collection
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *mongo.Database) ProductRepository {
	return &productRepo{col: db.Collection("products")}
}

func (r *productRepo) BulkCreate(ctx context.Context, vendorID primitive.ObjectID, products []model.Product) (*BulkResult, error) {
	if len(products) == 0 {
		return &BulkResult{}, nil
	}

	docs := make([]interface{}, 0, len(products))
	for i := range products {
		p := products[i]
		p.VendorID = vendorID
		p.ID = primitive.NilObjectID
		docs = append(docs, p)
	}

	// 无序写入：重复 (vendor_id, code) 只丢弃冲突文档
	_, err := r.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	dups, err := duplicateCount(err)
	if err != nil {
		return nil, err
	}

	return &BulkResult{
		Submitted:  len(products),
		Inserted:   len(products) - dups,
		Duplicates: dups,
	}, nil
}

func (r *productRepo) CountByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"vendor_id": vendorID})
}

func (r *productRepo) EachUntranslated(ctx context.Context, vendorID primitive.ObjectID, lang string, limit int64, fn func(p model.Product) error) error {
	filter := bson.M{
		"vendor_id":           vendorID,
		"translation." + lang: bson.M{"$exists": false},
	}

	opts := options.Find().SetBatchSize(1000)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var p model.Product
		if err := cursor.Decode(&p); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *productRepo) SetTranslation(ctx context.Context, id primitive.ObjectID, lang string, tr model.Translation) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"translation." + lang: tr}},
	)
	return err
}

func (r *productRepo) DeleteByVendor(ctx context.Context, vendorID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"vendor_id": vendorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
