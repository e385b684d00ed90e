package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel status changes are relayed on.
const DefaultChannel = "interactions:status"

type relayEnvelope struct {
	Origin string       `json:"origin"`
	Event  StatusChange `json:"event"`
}

// RedisRelay mirrors status changes between API instances so that a UI
// connected to one instance sees transitions applied by another.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *slog.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, log *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisRelay{rdb: rdb, channel: channel, origin: uuid.NewString(), log: log}
}

// Forward is a dispatcher Handler that publishes local events to Redis.
func (r *RedisRelay) Forward(ctx context.Context, ev StatusChange) error {
	if r.rdb == nil {
		return errors.New("events: redis client is nil")
	}
	b, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: ev})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Listen delivers events published by other instances to h until ctx is done.
// Events originating from this instance are skipped.
func (r *RedisRelay) Listen(ctx context.Context, h Handler) error {
	if r.rdb == nil {
		return errors.New("events: redis client is nil")
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, remote, err := r.decode(msg.Payload)
			if err != nil {
				r.log.Warn("relay payload decode failed", "err", err)
				continue
			}
			if !remote {
				continue
			}
			if err := h(ctx, ev); err != nil {
				r.log.Warn("relay handler failed", "entity", ev.Entity, "entity_id", ev.EntityID, "err", err)
			}
		}
	}
}

func (r *RedisRelay) decode(payload string) (StatusChange, bool, error) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return StatusChange{}, false, err
	}
	return env.Event, env.Origin != r.origin, nil
}
