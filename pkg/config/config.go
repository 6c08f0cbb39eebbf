package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 全局配置
type Config struct {
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Translator TranslatorConfig `mapstructure:"translator"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Task       TaskConfig       `mapstructure:"task"`
	Debug      bool             `mapstructure:"debug"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type TranslatorConfig struct {
	Key      string        `mapstructure:"key"`
	Region   string        `mapstructure:"region"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ProxyConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	URLs    []string `mapstructure:"urls"`
}

type ScraperConfig struct {
	Workers    int           `mapstructure:"workers"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
	RateLimit  float64       `mapstructure:"rate_limit"` // 每秒出站请求数，<=0 不限速
	UserAgent  string        `mapstructure:"user_agent"`
}

type TaskConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ScrapeCron  string `mapstructure:"scrape_cron"`  // 日常排空待抓取链接
	RefreshCron string `mapstructure:"refresh_cron"` // 全量重新发现
}

// ==================== 加载 ====================

// Load 加载配置
// 优先级：环境变量 (DERZAN_*) > 配置文件 > 默认值；path 为空时在工作目录找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "derzandb")
	v.SetDefault("translator.endpoint", "https://api.cognitive.microsofttranslator.com")
	v.SetDefault("translator.timeout", 30*time.Second)
	v.SetDefault("scraper.workers", 5)
	v.SetDefault("scraper.batch_size", 50)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff", 500*time.Millisecond)
	v.SetDefault("scraper.rate_limit", 0)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (compatible; DerzanBot/1.0)")
	v.SetDefault("task.enabled", false)
	v.SetDefault("task.scrape_cron", "0 0 2 * * *")
	v.SetDefault("task.refresh_cron", "0 0 4 * * 0")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DERZAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失可接受（全走环境变量/默认值），其他读取错误上抛
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
