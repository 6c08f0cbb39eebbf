package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"derzan_scraper_v1/internal/model"
	"derzan_scraper_v1/internal/repository"
)

// ProductTranslator 本地化运行依赖的商品翻译能力
type ProductTranslator interface {
	TranslateProduct(ctx context.Context, p *model.Product, toLang, fromLang string) (*model.Translation, error)
}

// ==================== 运行参数 ====================

// LocalizeOptions 本地化运行参数
type LocalizeOptions struct {
	TargetLang string
	SourceLang string // 空则取供应商档案语言
	Limit      int64  // <=0 不限量
	Workers    int
}

// LocalizeReport 单次本地化运行统计
type LocalizeReport struct {
	Vendor     string `json:"vendor"`
	TargetLang string `json:"target_lang"`
	Submitted  int    `json:"submitted"`
	Translated int    `json:"translated"`
	Failed     int    `json:"failed"`
}

// ==================== 服务 ====================

// LocalizeService 本地化运行
// 拉取缺少目标语言翻译的商品，工作池并行翻译，逐个整体写回
type LocalizeService struct {
	vendorRepo  repository.VendorRepository
	productRepo repository.ProductRepository
	translator  ProductTranslator
	logger      *zap.SugaredLogger
}

// NewLocalizeService 创建本地化服务
func NewLocalizeService(
	vendorRepo repository.VendorRepository,
	productRepo repository.ProductRepository,
	translator ProductTranslator,
	logger *zap.SugaredLogger,
) *LocalizeService {
	return &LocalizeService{
		vendorRepo:  vendorRepo,
		productRepo: productRepo,
		translator:  translator,
		logger:      logger,
	}
}

// Run 本地化入口（操作员触发）
func (s *LocalizeService) Run(ctx context.Context, vendorName string, opts LocalizeOptions) (*LocalizeReport, error) {
	if opts.TargetLang == "" {
		return nil, errors.New("目标语言不能为空")
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}

	vendor, err := s.vendorRepo.FindByName(ctx, vendorName)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, fmt.Errorf("供应商不存在: %s", vendorName)
	}

	fromLang := opts.SourceLang
	if fromLang == "" {
		fromLang = vendor.Language
	}
	if fromLang == "" {
		fromLang = "tr"
	}

	report := &LocalizeReport{Vendor: vendor.Name, TargetLang: opts.TargetLang}

	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	iterErr := s.productRepo.EachUntranslated(ctx, vendor.ID, opts.TargetLang, opts.Limit, func(p model.Product) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		report.Submitted++

		go func(p model.Product) {
			defer wg.Done()
			defer func() { <-sem }()

			tr, err := s.translator.TranslateProduct(ctx, &p, opts.TargetLang, fromLang)
			if err != nil {
				s.logger.Warnf("[Localize] 商品 %s 翻译失败: %v", p.Code, err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}

			// 整体替换写入该语言的翻译，不做字段级合并
			if err := s.productRepo.SetTranslation(ctx, p.ID, opts.TargetLang, *tr); err != nil {
				s.logger.Errorf("[Localize] 商品 %s 翻译写回失败: %v", p.Code, err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			report.Translated++
			mu.Unlock()
		}(p)
		return nil
	})

	wg.Wait()

	s.logger.Infof("[Localize] %s -> %s: 提交 %d, 成功 %d, 失败 %d",
		vendor.Name, opts.TargetLang, report.Submitted, report.Translated, report.Failed)

	if iterErr != nil {
		return report, iterErr
	}
	return report, nil
}
