package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"derzan_scraper_v1/internal/adapter"
	"derzan_scraper_v1/internal/repository"
	"derzan_scraper_v1/internal/service"
	"derzan_scraper_v1/internal/task"
	"derzan_scraper_v1/pkg/config"
	"derzan_scraper_v1/pkg/database"
	"derzan_scraper_v1/pkg/logger"
	"derzan_scraper_v1/pkg/net"
)

func main() {
	app := &cli.App{
		Name:  "derzan",
		Usage: "电商目录抓取与本地化管线",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（默认在工作目录找 config.yaml）",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			scrapeCommand(),
			translateCommand(),
			serveTasksCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config *config.Config
	Logger *zap.SugaredLogger
	Client *mongo.Client
	DB     *mongo.Database

	Repos    *Repositories
	Services *Services
}

// Repositories 仓库集合
type Repositories struct {
	Vendor     repository.VendorRepository
	ProductURL repository.ProductURLRepository
	Product    repository.ProductRepository
	TM         repository.TranslationMemoryRepository
	ScrapeUow  repository.ScrapeUnitOfWork
}

// Services 服务集合
type Services struct {
	Provider   *service.NetworkProvider
	Translator *service.TranslatorService
	Scraper    *service.ScraperService
	Localize   *service.LocalizeService
}

// Close 释放底层连接
func (d *Dependencies) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Client.Disconnect(ctx); err != nil {
		d.Logger.Warnf("[Main] Mongo 断开失败: %v", err)
	}
	_ = d.Logger.Sync()
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(c *cli.Context) (*Dependencies, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, err
	}

	client, db, err := database.InitMongo(c.Context, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("连接 Mongo 失败: %w", err)
	}

	// -------- Repo 层 --------
	vendorRepo := repository.NewVendorRepository(db)
	urlRepo := repository.NewProductURLRepository(db)
	productRepo := repository.NewProductRepository(db)
	tmRepo := repository.NewTranslationMemoryRepository(db)
	repos := &Repositories{
		Vendor:     vendorRepo,
		ProductURL: urlRepo,
		Product:    productRepo,
		TM:         tmRepo,
		ScrapeUow:  repository.NewScrapeUnitOfWork(client, productRepo, urlRepo),
	}

	// -------- 网络层 --------
	provider, err := service.NewNetworkProvider(cfg.Proxy.URLs, cfg.Proxy.Enabled, log)
	if err != nil {
		return nil, fmt.Errorf("代理池初始化失败: %w", err)
	}
	dispatcher := net.NewDispatcher(provider, net.Options{
		MaxRetries: cfg.Scraper.MaxRetries,
		Backoff:    cfg.Scraper.Backoff,
		RateLimit:  cfg.Scraper.RateLimit,
		UserAgent:  cfg.Scraper.UserAgent,
	})

	// -------- 业务服务 --------
	translator := service.NewTranslatorService(&service.TranslatorConfig{
		Key:      cfg.Translator.Key,
		Region:   cfg.Translator.Region,
		Endpoint: cfg.Translator.Endpoint,
		Timeout:  cfg.Translator.Timeout,
	}, tmRepo, log)

	services := &Services{
		Provider:   provider,
		Translator: translator,
		Scraper: service.NewScraperService(
			vendorRepo, urlRepo, productRepo, repos.ScrapeUow,
			dispatcher, provider, log, cfg.Scraper.BatchSize,
		),
		Localize: service.NewLocalizeService(vendorRepo, productRepo, translator, log),
	}

	return &Dependencies{
		Config:   cfg,
		Logger:   log,
		Client:   client,
		DB:       db,
		Repos:    repos,
		Services: services,
	}, nil
}

// ==================== 子命令 ====================

// migrateCommand 建索引
func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "创建各集合的索引（幂等）",
		Action: func(c *cli.Context) error {
			deps, err := initDependencies(c)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := database.EnsureIndexes(c.Context, deps.DB); err != nil {
				return fmt.Errorf("建索引失败: %w", err)
			}
			deps.Logger.Infof("[Main] 索引就绪")
			return nil
		},
	}
}

// scrapeCommand 跑一轮抓取
func scrapeCommand() *cli.Command {
	return &cli.Command{
		Name:      "scrape",
		Usage:     "抓取单个供应商的目录",
		ArgsUsage: "<vendor>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force-refresh",
				Usage: "清空已有链接与商品后重新发现",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "抓取并发数（默认取配置）",
			},
			&cli.BoolFlag{
				Name:  "proxy",
				Usage: "启用代理池出站",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("用法: derzan scrape <vendor>，可选供应商: %v", adapter.Names())
			}

			deps, err := initDependencies(c)
			if err != nil {
				return err
			}
			defer deps.Close()

			ad, err := adapter.Get(c.Args().First())
			if err != nil {
				return err
			}

			workers := c.Int("workers")
			if workers <= 0 {
				workers = deps.Config.Scraper.Workers
			}
			useProxy := c.Bool("proxy") || deps.Config.Proxy.Enabled

			ctx, stop := signalContext(c.Context)
			defer stop()

			report, err := deps.Services.Scraper.Run(ctx, ad, service.RunOptions{
				ForceRefresh: c.Bool("force-refresh"),
				Workers:      workers,
				UseProxy:     useProxy,
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

// translateCommand 跑一轮本地化
func translateCommand() *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Usage:     "为供应商商品补齐目标语言翻译",
		ArgsUsage: "<vendor>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "目标语言代码（如 en、ru）",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "源语言代码（默认取供应商档案）",
			},
			&cli.Int64Flag{
				Name:  "limit",
				Usage: "本轮最多处理的商品数（<=0 不限量）",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 10,
				Usage: "翻译并发数",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("用法: derzan translate <vendor> --to <lang>")
			}

			deps, err := initDependencies(c)
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, stop := signalContext(c.Context)
			defer stop()

			report, err := deps.Services.Localize.Run(ctx, c.Args().First(), service.LocalizeOptions{
				TargetLang: c.String("to"),
				SourceLang: c.String("from"),
				Limit:      c.Int64("limit"),
				Workers:    c.Int("workers"),
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

// serveTasksCommand 常驻定时任务
func serveTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve-tasks",
		Usage: "常驻运行定时抓取任务",
		Action: func(c *cli.Context) error {
			deps, err := initDependencies(c)
			if err != nil {
				return err
			}
			defer deps.Close()

			scrapeTask := task.NewScrapeTask(deps.Services.Scraper, deps.Logger, task.ScrapeTaskConfig{
				Workers:     deps.Config.Scraper.Workers,
				UseProxy:    deps.Config.Proxy.Enabled,
				ScrapeSpec:  deps.Config.Task.ScrapeCron,
				RefreshSpec: deps.Config.Task.RefreshCron,
			})
			scrapeTask.Start()

			// 等待退出信号
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			deps.Logger.Infof("[Main] 正在关闭...")
			scrapeTask.Stop()
			return nil
		},
	}
}

// ==================== 工具函数 ====================

// signalContext 收到 SIGINT/SIGTERM 时取消 ctx，使运行中的批次收尾后退出
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
