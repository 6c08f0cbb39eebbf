package repository

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

// ==================== 批量写错误甄别 ====================

func bulkErr(codes ...int) error {
	var writeErrors []mongo.BulkWriteError
	for i, code := range codes {
		writeErrors = append(writeErrors, mongo.BulkWriteError{
			WriteError: mongo.WriteError{Index: i, Code: code, Message: "write error"},
		})
	}
	return mongo.BulkWriteException{WriteErrors: writeErrors}
}

func TestDuplicateCount_Nil(t *testing.T) {
	dups, err := duplicateCount(nil)
	if err != nil || dups != 0 {
		t.Errorf("duplicateCount(nil) = %d, %v, want 0, nil", dups, err)
	}
}

func TestDuplicateCount_AllDuplicates(t *testing.T) {
	dups, err := duplicateCount(bulkErr(11000, 11000, 11000))
	if err != nil {
		t.Fatalf("全部为唯一键冲突应吞掉错误: %v", err)
	}
	if dups != 3 {
		t.Errorf("dups = %d, want 3", dups)
	}
}

func TestDuplicateCount_MixedErrors(t *testing.T) {
	// 混入非冲突写错误：不可吞，原样上抛
	if _, err := duplicateCount(bulkErr(11000, 121)); err == nil {
		t.Errorf("混合写错误应上抛")
	}
}

func TestDuplicateCount_WriteConcern(t *testing.T) {
	bwe := mongo.BulkWriteException{
		WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"},
		WriteErrors: []mongo.BulkWriteError{
			{WriteError: mongo.WriteError{Code: 11000}},
		},
	}
	if _, err := duplicateCount(bwe); err == nil {
		t.Errorf("写关注错误应上抛")
	}
}

func TestDuplicateCount_OtherError(t *testing.T) {
	cause := errors.New("connection reset")
	if _, err := duplicateCount(cause); !errors.Is(err, cause) {
		t.Errorf("非批量写错误应原样返回, got %v", err)
	}
}
