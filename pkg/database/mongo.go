package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InitMongo 初始化 Mongo 连接
// uri: 连接串；name: 库名
func InitMongo(ctx context.Context, uri, name string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	// 连接可用性探测
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, nil, err
	}

	return client, client.Database(name), nil
}

// EnsureIndexes 建立各集合的索引（migrate 命令调用，幂等）
// 唯一索引承担运行期的去重语义：
//   vendors.name / product_urls.url / products(vendor_id, code) /
//   translation_memory(source_text, source_lang, target_lang)
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"vendors": {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"products": {
			{
				Keys: bson.D{{Key: "vendor_id", Value: 1}},
			},
			{
				Keys:    bson.D{{Key: "vendor_id", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"product_urls": {
			{
				Keys:    bson.D{{Key: "url", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "status", Value: 1}},
			},
		},
		"translation_memory": {
			{
				Keys: bson.D{
					{Key: "source_text", Value: 1},
					{Key: "source_lang", Value: 1},
					{Key: "target_lang", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
