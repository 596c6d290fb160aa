package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lora-envmon/internal/config"
)

func TestPublishJSONToStream(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer Close(client)

	require.NoError(t, Ping(ctx, client))

	id, err := PublishJSONToStream(ctx, client, "envmon:readings", "reading", map[string]int{"battery_percent": 50})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "envmon:readings", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "reading", msgs[0].Values["type"])
	assert.JSONEq(t, `{"battery_percent":50}`, msgs[0].Values["data"].(string))
}

func TestPing_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer Close(client)
	mr.Close()

	err := Ping(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
