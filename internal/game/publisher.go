package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis pub/sub channel committed events are fanned out on.
const EventsChannel = "game_events"

// Publisher fans committed events out beyond this process.
type Publisher interface {
	Publish(ctx context.Context, gameID string, seq uint64, events []Event) error
}

// RedisPublisher publishes committed events on EventsChannel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

type publishedEvents struct {
	GameID    string    `json:"gameId"`
	Sequence  uint64    `json:"sequence"`
	Events    []Event   `json:"events"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *RedisPublisher) Publish(ctx context.Context, gameID string, seq uint64, events []Event) error {
	b, err := json.Marshal(publishedEvents{GameID: gameID, Sequence: seq, Events: events, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, EventsChannel, b).Err()
}
