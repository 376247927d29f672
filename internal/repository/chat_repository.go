package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"

	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

var tracer = otel.Tracer("repository.chat")

const (
	chatHistoryLimit = 50
	chatHistoryTTL   = 24 * time.Hour
)

// ChatRepository keeps a short, room-scoped chat history in Redis. The
// history is a convenience for late joiners; rooms themselves are never
// persisted and the history dies with the room.
type ChatRepository interface {
	Append(ctx context.Context, roomID string, msg proto.ChatMessage) error
	History(ctx context.Context, roomID string) ([]proto.ChatMessage, error)
	Clear(ctx context.Context, roomID string) error
}

type redisChatRepository struct {
	rdb *redis.Client
}

// NewChatRepository creates a new Redis-based ChatRepository.
func NewChatRepository(rdb *redis.Client) ChatRepository {
	return &redisChatRepository{rdb: rdb}
}

// Append pushes a message onto the room's history, trimming to the last
// chatHistoryLimit entries.
func (r *redisChatRepository) Append(ctx context.Context, roomID string, msg proto.ChatMessage) error {
	ctx, span := tracer.Start(ctx, "ChatRepository.Append")
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := chatKey(roomID)
	pipe := r.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -chatHistoryLimit, -1)
	pipe.Expire(ctx, key, chatHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// History returns the room's messages, oldest first.
func (r *redisChatRepository) History(ctx context.Context, roomID string) ([]proto.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "ChatRepository.History")
	defer span.End()

	raw, err := r.rdb.LRange(ctx, chatKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	out := make([]proto.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg proto.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear drops the room's history. Called when a room is deleted.
func (r *redisChatRepository) Clear(ctx context.Context, roomID string) error {
	ctx, span := tracer.Start(ctx, "ChatRepository.Clear")
	defer span.End()

	return r.rdb.Del(ctx, chatKey(roomID)).Err()
}

func chatKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s", roomID)
}
