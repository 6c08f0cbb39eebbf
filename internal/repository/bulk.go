package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Mongo 唯一键冲突错误码
const duplicateKeyCode = 11000

// BulkResult 批量写入结果
// Duplicates 为唯一键冲突被丢弃的条数（预期内，不算失败）
type BulkResult struct {
	Submitted  int `json:"submitted"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// duplicateCount 甄别批量写错误
// 错误全部为唯一键冲突时返回冲突条数并吞掉错误，混入其他写错误则原样返回
func duplicateCount(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return 0, err
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return 0, err
	}

	dups := 0
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return 0, err
		}
		dups++
	}
	return dups, nil
}
