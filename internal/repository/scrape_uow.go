package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"derzan_scraper_v1/internal/model"
)

// ==================== 工作单元接口 ====================

// ScrapeUnitOfWork 抓取提交工作单元（事务）
// 一个提交批次 = 商品批量入库 + 来源链接状态流转，两步同一事务
type ScrapeUnitOfWork interface {
	// CommitBatch 原子提交：
	//   1. 批量插入 products，(vendor_id, code) 冲突按预期重复丢弃
	//   2. 将 urls 批量流转为 SCRAPED
	// 任一非重复写错误整体回滚，不留半截批次
	CommitBatch(ctx context.Context, vendorID primitive.ObjectID, products []model.Product, urls []string) (*BulkResult, error)
}

// ==================== 工作单元实现 ====================

type scrapeUnitOfWork struct {
	client   *mongo.Client
	products ProductRepository
	urls     ProductURLRepository
}

// NewScrapeUnitOfWork 创建抓取工作单元
func NewScrapeUnitOfWork(client *mongo.Client, products ProductRepository, urls ProductURLRepository) ScrapeUnitOfWork {
	return &scrapeUnitOfWork{
		client:   client,
		products: products,
		urls:     urls,
	}
}

func (u *scrapeUnitOfWork) CommitBatch(ctx context.Context, vendorID primitive.ObjectID, products []model.Product, urls []string) (*BulkResult, error) {
	session, err := u.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result := &BulkResult{}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := u.products.BulkCreate(sc, vendorID, products)
		if err != nil {
			return nil, err
		}
		if err := u.urls.UpdateStatusByURLs(sc, urls, model.URLStatusScraped); err != nil {
			return nil, err
		}
		*result = *res
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
