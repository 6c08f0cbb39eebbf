package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"derzan_scraper_v1/internal/model"
	"derzan_scraper_v1/internal/repository"
)

// ==================== 配置 ====================

// TranslatorConfig 翻译服务配置
type TranslatorConfig struct {
	Key      string // 订阅密钥
	Region   string // 订阅区域，如 germanywestcentral
	Endpoint string // 默认微软认知服务
	Timeout  time.Duration
}

// ==================== 服务 ====================

// TranslatorService 批量翻译器
// 所有翻译先查翻译记忆，未命中才请求外部服务；新译文回写记忆
type TranslatorService struct {
	cfg    *TranslatorConfig
	client *resty.Client
	tm     repository.TranslationMemoryRepository
	logger *zap.SugaredLogger
}

// NewTranslatorService 创建翻译服务
func NewTranslatorService(cfg *TranslatorConfig, tm repository.TranslationMemoryRepository, logger *zap.SugaredLogger) *TranslatorService {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.cognitive.microsofttranslator.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout)

	return &TranslatorService{
		cfg:    cfg,
		client: client,
		tm:     tm,
		logger: logger,
	}
}

// ==================== 单条路径 ====================

// Translate 翻译单条文本
// 记忆命中直接返回；未命中请求一次服务，结果回写记忆后返回
func (s *TranslatorService) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	hit, err := s.tm.Lookup(ctx, text, fromLang, toLang)
	if err != nil {
		s.logger.Warnf("[Translator] 翻译记忆查询失败: %v", err)
	}
	if hit != "" {
		return hit, nil
	}

	results, err := s.callProvider(ctx, []string{text}, fromLang, toLang)
	if err != nil {
		return "", err
	}

	// 回写失败不影响本次翻译结果
	if err := s.tm.Store(ctx, text, fromLang, results[0], toLang); err != nil {
		s.logger.Warnf("[Translator] 翻译记忆写入失败: %v", err)
	}
	return results[0], nil
}

// ==================== 批量路径 ====================

// TranslateList 批量翻译，出参与入参等长同序
// 空白条目原样透传（不查记忆、不出网）；
// 其余条目按去除首尾空白后的文本查记忆，未命中的合并为一次服务调用
func (s *TranslatorService) TranslateList(ctx context.Context, texts []string, fromLang, toLang string) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)

	var (
		pendingIdx   []int
		pendingTexts []string
	)

	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		hit, err := s.tm.Lookup(ctx, trimmed, fromLang, toLang)
		if err != nil {
			s.logger.Warnf("[Translator] 翻译记忆查询失败: %v", err)
		}
		if hit != "" {
			out[i] = hit
			continue
		}

		pendingIdx = append(pendingIdx, i)
		pendingTexts = append(pendingTexts, trimmed)
	}

	if len(pendingTexts) == 0 {
		return out, nil
	}

	translated, err := s.translateBatch(ctx, pendingTexts, fromLang, toLang)
	if err != nil {
		return nil, err
	}

	for j, target := range translated {
		out[pendingIdx[j]] = target
		if err := s.tm.Store(ctx, pendingTexts[j], fromLang, target, toLang); err != nil {
			s.logger.Warnf("[Translator] 翻译记忆写入失败: %v", err)
		}
	}
	return out, nil
}

// translateBatch 调用翻译服务
// 批量超限的拒绝走二分重试，缩到单条仍被拒则作硬错误抛出；
// 其他非成功响应直接失败，整批不写记忆
func (s *TranslatorService) translateBatch(ctx context.Context, texts []string, fromLang, toLang string) ([]string, error) {
	results, err := s.callProvider(ctx, texts, fromLang, toLang)
	if err == nil {
		return results, nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.BatchTooLarge() && len(texts) > 1 {
		mid := len(texts) / 2
		s.logger.Warnf("[Translator] 批量超限 (%d 条)，二分重试", len(texts))

		left, err := s.translateBatch(ctx, texts[:mid], fromLang, toLang)
		if err != nil {
			return nil, err
		}
		right, err := s.translateBatch(ctx, texts[mid:], fromLang, toLang)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}
	return nil, err
}

// ==================== 服务调用 ====================

type providerResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// callProvider 一次批量翻译请求，入参保持相对顺序，第 i 条响应对应第 i 条请求
func (s *TranslatorService) callProvider(ctx context.Context, texts []string, fromLang, toLang string) ([]string, error) {
	body := make([]map[string]string, 0, len(texts))
	for _, t := range texts {
		body = append(body, map[string]string{"text": t})
	}

	var results []providerResult
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api-version": "3.0",
			"from":        fromLang,
			"to":          toLang,
		}).
		SetHeader("Ocp-Apim-Subscription-Key", s.cfg.Key).
		SetHeader("Ocp-Apim-Subscription-Region", s.cfg.Region).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-ClientTraceId", uuid.NewString()).
		SetBody(body).
		SetResult(&results).
		Post("/translate")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if len(results) != len(texts) {
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Body: "response element count mismatch"}
	}

	out := make([]string, len(texts))
	for i := range results {
		if len(results[i].Translations) > 0 {
			out[i] = results[i].Translations[0].Text
		}
	}
	return out, nil
}

// ==================== 商品翻译 ====================

// TranslateProduct 翻译单个商品：名称走单条路径，描述走结构化文档翻译
// 返回整体替换用的翻译结果，不落库（写回由本地化运行负责）
func (s *TranslatorService) TranslateProduct(ctx context.Context, p *model.Product, toLang, fromLang string) (*model.Translation, error) {
	name, err := s.Translate(ctx, p.Name, fromLang, toLang)
	if err != nil {
		return nil, err
	}

	description, err := s.TranslateDocument(ctx, p.Description, fromLang, toLang)
	if err != nil {
		return nil, err
	}

	return &model.Translation{Name: name, Description: description}, nil
}
