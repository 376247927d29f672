package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PresenceStatus is a player's coarse online state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRepository mirrors who is connected into Redis so the HTTP
// surface (and operators) can see presence without touching the
// coordinator. It is advisory only; the Connection Registry stays the
// authority over live bindings.
type PresenceRepository interface {
	SetOnline(ctx context.Context, identity string) error
	SetOffline(ctx context.Context, identity string) error
	SetRoom(ctx context.Context, identity, roomID string) error
	Status(ctx context.Context, identity string) (PresenceStatus, string, error)
}

type redisPresenceRepository struct {
	rdb *redis.Client
}

// NewPresenceRepository creates a new Redis-based PresenceRepository.
func NewPresenceRepository(rdb *redis.Client) PresenceRepository {
	return &redisPresenceRepository{rdb: rdb}
}

func (r *redisPresenceRepository) SetOnline(ctx context.Context, identity string) error {
	ctx, span := tracer.Start(ctx, "PresenceRepository.SetOnline")
	defer span.End()

	return r.rdb.HSet(ctx, presenceKey(identity), "status", string(PresenceOnline)).Err()
}

func (r *redisPresenceRepository) SetOffline(ctx context.Context, identity string) error {
	ctx, span := tracer.Start(ctx, "PresenceRepository.SetOffline")
	defer span.End()

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, presenceKey(identity), "status", string(PresenceOffline))
	pipe.HDel(ctx, presenceKey(identity), "room_id")
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisPresenceRepository) SetRoom(ctx context.Context, identity, roomID string) error {
	ctx, span := tracer.Start(ctx, "PresenceRepository.SetRoom")
	defer span.End()

	return r.rdb.HSet(ctx, presenceKey(identity), "room_id", roomID).Err()
}

func (r *redisPresenceRepository) Status(ctx context.Context, identity string) (PresenceStatus, string, error) {
	ctx, span := tracer.Start(ctx, "PresenceRepository.Status")
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, presenceKey(identity)).Result()
	if err != nil {
		return "", "", err
	}
	status := PresenceStatus(data["status"])
	if status == "" {
		status = PresenceOffline
	}
	return status, data["room_id"], nil
}

func presenceKey(identity string) string {
	return fmt.Sprintf("presence:%s", identity)
}
