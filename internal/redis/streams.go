package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMaxLen 每个 stream 保留的大致消息数（MAXLEN ~）
const StreamMaxLen = 10000

// PublishJSONToStream 发布 JSON 消息到 Redis Streams
// 消息格式：data=<json>, type=<msgType>, timestamp=<unix 秒>
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream, msgType string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      msgType,
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}
