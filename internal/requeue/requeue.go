// Package requeue hands games whose verification fell short of exact back
// to the external collection pipeline.
package requeue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pable/go-pbp-metrics/internal/model"
)

// DefaultStream is the stream reprocessing requests are appended to.
const DefaultStream = "games.reprocess.basketball"

// Request asks the collection pipeline to re-ingest part of a game.
type Request struct {
	GameID      string  `json:"game_id"`
	FromOrdinal int     `json:"from_ordinal"`
	ToOrdinal   int     `json:"to_ordinal"`
	Grade       string  `json:"grade"`
	WorstStat   string  `json:"worst_stat,omitempty"`
	MaxAbsError float64 `json:"max_abs_error"`
	Reason      string  `json:"reason"`
}

// FromRecord builds the request for a verification record that needs
// reprocessing.
func FromRecord(rec model.VerificationRecord) Request {
	reason := fmt.Sprintf("verification grade %s", rec.Grade)
	if n := len(rec.Mismatches()); n > 0 {
		reason = fmt.Sprintf("%s, %d mismatched stats", reason, n)
	}
	return Request{
		GameID:      rec.GameID,
		FromOrdinal: rec.FromOrdinal,
		ToOrdinal:   rec.ToOrdinal,
		Grade:       rec.Grade.String(),
		WorstStat:   rec.WorstStat,
		MaxAbsError: rec.MaxAbsError,
		Reason:      reason,
	}
}

// Queue accepts reprocessing requests.
type Queue interface {
	Enqueue(ctx context.Context, req Request) error
}

// Discard is the queue used when no broker is configured.
type Discard struct{}

func (Discard) Enqueue(context.Context, Request) error { return nil }

// XAdder is the slice of the redis client the stream queue needs.
type XAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisQueue appends requests to a Redis stream.
type RedisQueue struct {
	client XAdder
	stream string
	now    func() time.Time
}

// NewRedisQueue wraps an existing client. An empty stream uses DefaultStream.
func NewRedisQueue(client XAdder, stream string) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{client: client, stream: stream, now: time.Now}
}

// Dial connects to redisURL and checks the connection.
func Dial(redisURL, stream string) (*RedisQueue, func() error, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisQueue(client, stream), client.Close, nil
}

// Enqueue appends req as a JSON document.
func (q *RedisQueue) Enqueue(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", req.GameID, err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"game_id":   req.GameID,
			"data":      string(data),
			"timestamp": q.now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s for %s: %w", q.stream, req.GameID, err)
	}
	return nil
}
