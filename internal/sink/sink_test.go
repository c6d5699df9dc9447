package sink

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/config"
	"github.com/witoldo7/gowmbus/internal/testutil"
	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

func analyze(t *testing.T) gowmbus.Result {
	t.Helper()
	res, err := gowmbus.AnalyzeHex(context.Background(), testutil.LoadHex(t, "hydrodigit/hydrodigit_water.hex"))
	require.NoError(t, err)
	return res
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	msg, err := NewMessage(analyze(t), at)
	require.NoError(t, err)
	_, err = uuid.Parse(msg.ID)
	require.NoError(t, err)
	require.Equal(t, "hydrodigit", msg.Driver)
	require.Equal(t, "86868686", msg.MeterID)
	require.Equal(t, time.UTC, msg.ReceivedAt.Location())
	require.Equal(t, 10, msg.ReceivedAt.Hour())
	require.Equal(t, "telegram", msg.Telegram["_"])

	other, err := NewMessage(analyze(t), at)
	require.NoError(t, err)
	require.NotEqual(t, msg.ID, other.ID)

	_, err = NewMessage(gowmbus.Result{Driver: gowmbus.UnknownDriver}, at)
	require.ErrorIs(t, err, ErrNotDecoded)
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping test")
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestPublishAndHistory(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedis(client, config.RedisConfig{Channel: "test:readouts", HistoryLen: 2}, nil)

	sub := client.Subscribe(ctx, "test:readouts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		msg, err := s.Publish(ctx, analyze(t))
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	got, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Contains(t, got.Payload, ids[0])

	history, err := s.History(ctx, "86868686", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ids[2], history[0].ID)
	require.Equal(t, ids[1], history[1].ID)
}
