package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// TranslationMemory 翻译记忆条目
// 唯一性约束：(source_text, source_lang, target_lang)
// 首次翻译成功后惰性写入，此后只读（已有条目视为权威，不再请求翻译服务）
type TranslationMemory struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SourceText string             `bson:"source_text" json:"source_text"`
	SourceLang string             `bson:"source_lang" json:"source_lang"`
	TargetText string             `bson:"target_text" json:"target_text"`
	TargetLang string             `bson:"target_lang" json:"target_lang"`
}
