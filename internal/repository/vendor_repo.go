package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"derzan_scraper_v1/internal/model"
)

// ==================== 仓储接口 ====================

// VendorRepository 供应商仓储接口
type VendorRepository interface {
	FindByName(ctx context.Context, name string) (*model.Vendor, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Vendor, error)
	Save(ctx context.Context, vendor *model.Vendor) error
	GetOrCreate(ctx context.Context, vendor model.Vendor) (*model.Vendor, error)
	List(ctx context.Context) ([]model.Vendor, error)
}

// ==================== 仓储实现 ====================

type vendorRepo struct {
	col *mongo.Collection
}

// NewVendorRepository 创建供应商仓储
func NewVendorRepository(db *mongo.Database) VendorRepository {
	return &vendorRepo{col: db.Collection("vendors")}
}

// FindByName 按名称查找（统一小写），未找到返回 nil
func (r *vendorRepo) FindByName(ctx context.Context, name string) (*model.Vendor, error) {
	var vendor model.Vendor
	err := r.col.FindOne(ctx, bson.M{"name": model.NormalizeVendorName(name)}).Decode(&vendor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Vendor, error) {
	var vendor model.Vendor
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&vendor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// Save 新增或整体替换
func (r *vendorRepo) Save(ctx context.Context, vendor *model.Vendor) error {
	vendor.Name = model.NormalizeVendorName(vendor.Name)

	if vendor.ID.IsZero() {
		res, err := r.col.InsertOne(ctx, vendor)
		if err != nil {
			return err
		}
		vendor.ID = res.InsertedID.(primitive.ObjectID)
		return nil
	}

	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": vendor.ID}, vendor)
	return err
}

// GetOrCreate 按名称获取，不存在则创建
func (r *vendorRepo) GetOrCreate(ctx context.Context, vendor model.Vendor) (*model.Vendor, error) {
	found, err := r.FindByName(ctx, vendor.Name)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	if vendor.Language == "" {
		vendor.Language = "tr"
	}
	if err := r.Save(ctx, &vendor); err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepo) List(ctx context.Context) ([]model.Vendor, error) {
	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vendors []model.Vendor
	if err := cursor.All(ctx, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}
