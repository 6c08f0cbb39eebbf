package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"derzan_scraper_v1/internal/model"
)

// ==================== 仓储接口 ====================

// TranslationMemoryRepository 翻译记忆仓储接口
// (source_text, source_lang, target_lang) 唯一；条目只增不改
type TranslationMemoryRepository interface {
	// Lookup 点查；未命中返回空串，不算错误
	Lookup(ctx context.Context, sourceText, sourceLang, targetLang string) (string, error)
	// Store 写入一条翻译；并发写撞唯一键视为良性重复，静默吞掉（先写入的条目保持权威）
	// 空的原文/译文拒绝入库，防止把翻译服务的异常响应缓存住
	Store(ctx context.Context, sourceText, sourceLang, targetText, targetLang string) error
}

// ==================== 仓储实现 ====================

type translationMemoryRepo struct {
	col *mongo.Collection
}

// NewTranslationMemoryRepository 创建翻译记忆仓储
func NewTranslationMemoryRepository(db *mongo.Database) TranslationMemoryRepository {
	return &translationMemoryRepo{col: db.Collection("translation_memory")}
}

func (r *translationMemoryRepo) Lookup(ctx context.Context, sourceText, sourceLang, targetLang string) (string, error) {
	filter := bson.M{
		"source_text": sourceText,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}

	var entry model.TranslationMemory
	err := r.col.FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entry.TargetText, nil
}

func (r *translationMemoryRepo) Store(ctx context.Context, sourceText, sourceLang, targetText, targetLang string) error {
	if sourceText == "" || targetText == "" {
		return nil
	}

	_, err := r.col.InsertOne(ctx, model.TranslationMemory{
		SourceText: sourceText,
		SourceLang: sourceLang,
		TargetText: targetText,
		TargetLang: targetLang,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
