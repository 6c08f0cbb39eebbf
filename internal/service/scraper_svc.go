package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"derzan_scraper_v1/internal/adapter"
	"derzan_scraper_v1/internal/model"
	"derzan_scraper_v1/internal/repository"
	"derzan_scraper_v1/pkg/net"
)

// ==================== 运行参数 ====================

// RunOptions 抓取运行参数（任务层/CLI 传入）
type RunOptions struct {
	ForceRefresh bool // 清空后重新发现链接
	Workers      int  // 工作池大小
	UseProxy     bool
}

// RunReport 单次运行统计
// 管线对局部失败不抛错，按批次/条目计数反馈给操作员
type RunReport struct {
	Vendor        string `json:"vendor"`
	URLsFound     int    `json:"urls_found"`     // 发现阶段新入库链接
	Submitted     int    `json:"submitted"`      // 提交的抓取任务数
	Parsed        int    `json:"parsed"`         // 解析出的商品记录数
	Inserted      int    `json:"inserted"`       // 实际入库
	Duplicates    int    `json:"duplicates"`     // 唯一键冲突被丢弃
	DataFailures  int    `json:"data_failures"`  // 数据缺失，链接保持 PENDING
	FetchFailures int    `json:"fetch_failures"` // 重试耗尽，链接流转 FAILED
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failed_batches"` // 整批回滚，待重跑
}

// ==================== 服务 ====================

// ScraperService 抓取管线
// 状态机：IDLE -> (发现) -> 抓取 <-> 提交 -> 完成
// 共享可变状态只有目录库与翻译记忆，写入都经由各自的原子边界
type ScraperService struct {
	vendorRepo  repository.VendorRepository
	urlRepo     repository.ProductURLRepository
	productRepo repository.ProductRepository
	uow         repository.ScrapeUnitOfWork
	dispatcher  net.Dispatcher
	provider    *NetworkProvider
	logger      *zap.SugaredLogger
	batchSize   int
}

// NewScraperService 创建抓取管线
func NewScraperService(
	vendorRepo repository.VendorRepository,
	urlRepo repository.ProductURLRepository,
	productRepo repository.ProductRepository,
	uow repository.ScrapeUnitOfWork,
	dispatcher net.Dispatcher,
	provider *NetworkProvider,
	logger *zap.SugaredLogger,
	batchSize int,
) *ScraperService {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ScraperService{
		vendorRepo:  vendorRepo,
		urlRepo:     urlRepo,
		productRepo: productRepo,
		uow:         uow,
		dispatcher:  dispatcher,
		provider:    provider,
		logger:      logger,
		batchSize:   batchSize,
	}
}

// Run 管线入口
// forceRefresh 时先清空重新发现，随后排空待抓取链接并分批提交
func (s *ScraperService) Run(ctx context.Context, ad adapter.Adapter, opts RunOptions) (*RunReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if s.provider != nil {
		s.provider.SetEnabled(opts.UseProxy)
	}

	vendor, err := s.vendorRepo.GetOrCreate(ctx, ad.Vendor())
	if err != nil {
		return nil, err
	}

	report := &RunReport{Vendor: vendor.Name}

	if opts.ForceRefresh {
		if err := s.discover(ctx, vendor, ad, opts.Workers, report); err != nil {
			return report, err
		}
	}

	if err := s.fetchAll(ctx, vendor, ad, opts.Workers, report); err != nil {
		return report, err
	}

	s.logger.Infof("[Scraper] %s: 任务 %d, 记录 %d, 入库 %d, 重复 %d, 数据失败 %d, 抓取失败 %d, 批次 %d (失败 %d)",
		vendor.Name, report.Submitted, report.Parsed, report.Inserted, report.Duplicates,
		report.DataFailures, report.FetchFailures, report.Batches, report.FailedBatches)
	return report, nil
}

// ==================== 发现阶段 ====================

// discover 全量重建链接边界集
// 类目间串行、类目内分页并行；单页失败只丢该页，不影响兄弟页
func (s *ScraperService) discover(ctx context.Context, vendor *model.Vendor, ad adapter.Adapter, workers int, report *RunReport) error {
	s.logger.Infof("[Scraper] %s: 清空旧链接与商品，重新发现", vendor.Name)
	if _, err := s.urlRepo.DeleteByVendor(ctx, vendor.ID); err != nil {
		return err
	}
	if _, err := s.productRepo.DeleteByVendor(ctx, vendor.ID); err != nil {
		return err
	}

	var menu adapter.RawRecord
	if err := s.dispatcher.GetJSON(ctx, vendor.Name, ad.MenuURL(), &menu); err != nil {
		return fmt.Errorf("拉取类目菜单失败: %w", err)
	}

	categories := ad.CategoryURLs(menu)
	s.logger.Infof("[Scraper] %s: 发现类目 %d 个", vendor.Name, len(categories))

	for i, cat := range categories {
		s.logger.Infof("[Scraper] 类目 [%d/%d]", i+1, len(categories))
		urls := s.discoverCategory(ctx, vendor, ad, cat, workers)
		if len(urls) == 0 {
			continue
		}

		res, err := s.urlRepo.BulkCreate(ctx, vendor.ID, urls)
		if err != nil {
			return err
		}
		report.URLsFound += res.Inserted
		s.logger.Infof("[Scraper] %d 条链接 - 新增 %d - 重复 %d", res.Submitted, res.Inserted, res.Duplicates)
	}
	return nil
}

// discoverCategory 单类目分页抓取
// 页数由列表报告的总量推出，页抓取走工作池并行
func (s *ScraperService) discoverCategory(ctx context.Context, vendor *model.Vendor, ad adapter.Adapter, categoryURL string, workers int) []string {
	var listing adapter.RawRecord
	if err := s.dispatcher.GetJSON(ctx, vendor.Name, categoryURL, &listing); err != nil {
		s.logger.Warnf("[Scraper] 类目拉取失败 %s: %v", categoryURL, err)
		return nil
	}

	pages := ad.ListingTotal(listing) / ad.PerPage()
	s.logger.Infof("[Scraper] 类目分页 %d 页", pages)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var urls []string

	for page := 1; page <= pages; page++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return urls
		case sem <- struct{}{}:
		}
		wg.Add(1)

		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			var payload adapter.RawRecord
			if err := s.dispatcher.GetJSON(ctx, vendor.Name, pageURL, &payload); err != nil {
				// 失败页贡献 0 条链接，不重试、不阻断兄弟页
				s.logger.Warnf("[Scraper] 列表页失败 %s: %v", pageURL, err)
				return
			}

			found := ad.ListingProductURLs(payload)
			mu.Lock()
			urls = append(urls, found...)
			mu.Unlock()
		}(ad.PageURL(categoryURL, page))
	}

	wg.Wait()
	s.logger.Infof("[Scraper] 商品链接 %d 条", len(urls))
	return urls
}

// ==================== 抓取阶段 ====================

// fetchOutcome 单任务终态
// products 为空且未失败 = 数据缺失（链接保持 PENDING）
type fetchOutcome struct {
	url      string
	products []model.Product
	failed   bool // 瞬态重试耗尽 -> FAILED
}

// fetchAll 排空待抓取链接
// 游标流式提交任务，工作池限并发形成背压；收集协程按完成顺序聚批提交
func (s *ScraperService) fetchAll(ctx context.Context, vendor *model.Vendor, ad adapter.Adapter, workers int, report *RunReport) error {
	total, err := s.urlRepo.CountByStatus(ctx, vendor.ID, model.URLStatusPending)
	if err != nil {
		return err
	}
	s.logger.Infof("[Scraper] %s: 待抓取 %d 条", vendor.Name, total)

	results := make(chan fetchOutcome, workers)
	collectorDone := make(chan struct{})
	go s.collect(ctx, vendor, results, total, report, collectorDone)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	iterErr := s.urlRepo.EachPending(ctx, vendor.ID, func(u model.ProductURL) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		report.Submitted++

		go func(u model.ProductURL) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- s.fetchOne(ctx, vendor, ad, u.URL)
		}(u)
		return nil
	})

	wg.Wait()
	close(results)
	<-collectorDone
	return iterErr
}

// fetchOne 单链接抓取任务
// 变体组成员共享父请求上下文，任务内串行补抓；
// 瞬态失败由调度器带退避重试，额度耗尽整链接判 FAILED；
// 数据缺失（必填字段为空/非 2xx）记数据失败，链接保持 PENDING
func (s *ScraperService) fetchOne(ctx context.Context, vendor *model.Vendor, ad adapter.Adapter, rawurl string) fetchOutcome {
	outcome := fetchOutcome{url: rawurl}

	var payload adapter.RawRecord
	if err := s.dispatcher.GetJSON(ctx, vendor.Name, rawurl, &payload); err != nil {
		var te *net.TransientError
		if errors.As(err, &te) {
			s.logger.Warnf("[Scraper] 重试耗尽 %s: %v", rawurl, err)
			outcome.failed = true
			return outcome
		}
		s.logger.Warnf("[Scraper] 抓取失败 %s: %v", rawurl, err)
		return outcome
	}

	codes := ad.VariantCodes(payload)
	if len(codes) == 0 {
		p, err := ad.ParseProduct(payload)
		if err != nil {
			s.logger.Warnf("[Scraper] 解析失败 %s: %v", rawurl, err)
			return outcome
		}
		outcome.products = append(outcome.products, *p)
		return outcome
	}

	for _, code := range codes {
		var detail adapter.RawRecord
		if err := s.dispatcher.GetJSON(ctx, vendor.Name, ad.DetailURL(code), &detail); err != nil {
			var te *net.TransientError
			if errors.As(err, &te) {
				s.logger.Warnf("[Scraper] 变体重试耗尽 %s [%s]: %v", rawurl, code, err)
				outcome.failed = true
				outcome.products = nil
				return outcome
			}
			s.logger.Warnf("[Scraper] 变体抓取失败 %s [%s]: %v", rawurl, code, err)
			continue
		}

		p, err := ad.ParseProduct(detail)
		if err != nil {
			s.logger.Warnf("[Scraper] 变体解析失败 %s [%s]: %v", rawurl, code, err)
			continue
		}
		outcome.products = append(outcome.products, *p)
	}
	return outcome
}

// ==================== 提交阶段 ====================

// collect 按完成顺序聚批
// 每 batchSize 个完成任务或全部排空时提交一次；
// 记录与链接的关联按 url 值，完成顺序的乱序不会写错状态
func (s *ScraperService) collect(ctx context.Context, vendor *model.Vendor, results <-chan fetchOutcome, total int64, report *RunReport, done chan<- struct{}) {
	defer close(done)

	var (
		batch      []model.Product
		batchURLs  []string
		failedURLs []string
		completed  int
	)

	commit := func() {
		// FAILED 流转不进提交事务：批次回滚也不该把重试耗尽的链接留在 PENDING
		if len(failedURLs) > 0 {
			if err := s.urlRepo.UpdateStatusByURLs(ctx, failedURLs, model.URLStatusFailed); err != nil {
				s.logger.Errorf("[Scraper] FAILED 状态更新失败: %v", err)
			}
			report.FetchFailures += len(failedURLs)
			failedURLs = nil
		}

		if len(batch) == 0 {
			return
		}

		report.Batches++
		res, err := s.uow.CommitBatch(ctx, vendor.ID, batch, batchURLs)
		if err != nil {
			// 整批回滚：内存记录丢弃，链接保持 PENDING，交由操作员重跑
			report.FailedBatches++
			s.logger.Errorf("[Scraper] 批次提交失败，已回滚 %d 条记录: %v", len(batch), err)
		} else {
			report.Inserted += res.Inserted
			report.Duplicates += res.Duplicates
			s.logger.Infof("[Scraper] %d 条记录 - 入库 %d - 重复 %d", res.Submitted, res.Inserted, res.Duplicates)
		}
		batch = nil
		batchURLs = nil
	}

	for outcome := range results {
		completed++
		s.logger.Debugf("[Scraper] 商品 [%d/%d]", completed, total)

		switch {
		case outcome.failed:
			failedURLs = append(failedURLs, outcome.url)
		case len(outcome.products) == 0:
			report.DataFailures++
		default:
			report.Parsed += len(outcome.products)
			batch = append(batch, outcome.products...)
			batchURLs = append(batchURLs, outcome.url)
		}

		if completed%s.batchSize == 0 {
			commit()
		}
	}
	commit()
}
