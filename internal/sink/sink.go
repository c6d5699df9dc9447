// Package sink fans decoded readouts out to Redis: every readout is published
// on a channel and kept in a capped per-meter history list.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/witoldo7/gowmbus/internal/config"
	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

// ErrNotDecoded is returned for results without a driver readout.
var ErrNotDecoded = errors.New("telegram was not decoded by any driver")

// Message is the published document.
type Message struct {
	ID         string         `json:"id"`
	Driver     string         `json:"driver"`
	MeterID    string         `json:"meter_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Raw        string         `json:"raw"`
	Telegram   map[string]any `json:"telegram"`
}

// NewMessage wraps a result for publishing.
func NewMessage(res gowmbus.Result, receivedAt time.Time) (Message, error) {
	if res.Readout == nil || res.Telegram == nil {
		return Message{}, ErrNotDecoded
	}
	return Message{
		ID:         uuid.NewString(),
		Driver:     res.Driver,
		MeterID:    res.Telegram.MeterIDString(),
		ReceivedAt: receivedAt.UTC(),
		Raw:        res.RawHex,
		Telegram:   res.Fields,
	}, nil
}

// Redis publishes messages through a go-redis client.
type Redis struct {
	client     redis.UniversalClient
	channel    string
	historyLen int64
	log        logrus.FieldLogger
	now        func() time.Time
}

// Dial opens a client for cfg and checks the connection.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedis returns a sink writing to client.
func NewRedis(client redis.UniversalClient, cfg config.RedisConfig, log logrus.FieldLogger) *Redis {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Redis{
		client:     client,
		channel:    cfg.Channel,
		historyLen: cfg.HistoryLen,
		log:        log,
		now:        time.Now,
	}
}

// HistoryKey is the list holding the recent messages of one meter.
func (r *Redis) HistoryKey(meterID string) string {
	return r.channel + ":history:" + meterID
}

// Publish sends the result to the channel and prepends it to the meter
// history, trimmed to the configured length.
func (r *Redis) Publish(ctx context.Context, res gowmbus.Result) (Message, error) {
	msg, err := NewMessage(res, r.now())
	if err != nil {
		return Message{}, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("encode message: %w", err)
	}
	key := r.HistoryKey(msg.MeterID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, r.channel, payload)
		if r.historyLen > 0 {
			pipe.LPush(ctx, key, payload)
			pipe.LTrim(ctx, key, 0, r.historyLen-1)
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("id", msg.MeterID).Warn("publish readout failed")
		return Message{}, fmt.Errorf("publish readout: %w", err)
	}
	return msg, nil
}

// History returns up to n recent messages of a meter, newest first.
func (r *Redis) History(ctx context.Context, meterID string, n int64) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.HistoryKey(meterID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.client.Close() }
