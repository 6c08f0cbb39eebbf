package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"derzan_scraper_v1/internal/adapter"
	"derzan_scraper_v1/internal/service"
)

// ==================== ScrapeTask 抓取定时任务 ====================

// ScrapeTask 抓取定时任务
// 调度策略：
//   - 日常排空：默认每日凌晨 2 点，只抓 PENDING 链接
//   - 全量刷新：默认每周日凌晨 4 点，清空重新发现
type ScrapeTask struct {
	scraper *service.ScraperService
	cron    *cron.Cron
	logger  *zap.SugaredLogger

	workers     int
	useProxy    bool
	scrapeSpec  string
	refreshSpec string
}

// ScrapeTaskConfig 抓取任务配置
type ScrapeTaskConfig struct {
	Workers     int
	UseProxy    bool
	ScrapeSpec  string // cron 表达式（带秒位）
	RefreshSpec string
}

// NewScrapeTask 创建抓取任务
func NewScrapeTask(scraper *service.ScraperService, logger *zap.SugaredLogger, cfg ScrapeTaskConfig) *ScrapeTask {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.ScrapeSpec == "" {
		cfg.ScrapeSpec = "0 0 2 * * *"
	}
	if cfg.RefreshSpec == "" {
		cfg.RefreshSpec = "0 0 4 * * 0"
	}

	return &ScrapeTask{
		scraper:     scraper,
		cron:        cron.New(cron.WithSeconds()),
		logger:      logger,
		workers:     cfg.Workers,
		useProxy:    cfg.UseProxy,
		scrapeSpec:  cfg.ScrapeSpec,
		refreshSpec: cfg.RefreshSpec,
	}
}

// Start 启动定时任务
func (t *ScrapeTask) Start() {
	// 日常排空
	_, _ = t.cron.AddFunc(t.scrapeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
		defer cancel()
		t.runAll(ctx, false)
	})

	// 全量刷新
	_, _ = t.cron.AddFunc(t.refreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Hour)
		defer cancel()
		t.logger.Infof("[ScrapeTask] 开始全量刷新...")
		t.runAll(ctx, true)
	})

	t.cron.Start()
	t.logger.Infof("[ScrapeTask] 已启动 (排空 %s / 刷新 %s)", t.scrapeSpec, t.refreshSpec)
}

// Stop 停止任务
func (t *ScrapeTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Infof("[ScrapeTask] 已停止")
}

// runAll 逐个供应商跑一轮
func (t *ScrapeTask) runAll(ctx context.Context, forceRefresh bool) {
	for _, name := range adapter.Names() {
		ad, err := adapter.Get(name)
		if err != nil {
			t.logger.Errorf("[ScrapeTask] %v", err)
			continue
		}

		report, err := t.scraper.Run(ctx, ad, service.RunOptions{
			ForceRefresh: forceRefresh,
			Workers:      t.workers,
			UseProxy:     t.useProxy,
		})
		if err != nil {
			t.logger.Errorf("[ScrapeTask] 供应商 %s 运行失败: %v", name, err)
			continue
		}
		t.logger.Infof("[ScrapeTask] 供应商 %s: 入库 %d, 重复 %d, 失败批次 %d",
			name, report.Inserted, report.Duplicates, report.FailedBatches)
	}
}

// ==================== 手动触发 ====================

// RunNow 立即异步跑单个供应商
func (t *ScrapeTask) RunNow(vendorName string, forceRefresh bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
		defer cancel()

		ad, err := adapter.Get(vendorName)
		if err != nil {
			t.logger.Errorf("[ScrapeTask] %v", err)
			return
		}
		if _, err := t.scraper.Run(ctx, ad, service.RunOptions{
			ForceRefresh: forceRefresh,
			Workers:      t.workers,
			UseProxy:     t.useProxy,
		}); err != nil {
			t.logger.Errorf("[ScrapeTask] 供应商 %s 运行失败: %v", vendorName, err)
		}
	}()
}
