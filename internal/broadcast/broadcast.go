package broadcast

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gp1080/MrGamePlayer-sub001/internal/player"
	"github.com/gp1080/MrGamePlayer-sub001/internal/registry"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

var tracer = otel.Tracer("broadcast")

// Engine fans outbound envelopes out to subsets of live connections.
// Delivery is best effort: closed or unresolvable connections are
// skipped silently, there is no queue and no retry.
type Engine struct {
	registry  *registry.Registry
	directory *room.Directory
}

func New(reg *registry.Registry, dir *room.Directory) *Engine {
	return &Engine{registry: reg, directory: dir}
}

// Dispatch delivers every event produced by a Directory operation.
// sender is the originating connection, used for ScopeSender events.
func (e *Engine) Dispatch(ctx context.Context, events []room.Event, sender player.Connection) {
	for _, ev := range events {
		switch ev.Scope {
		case room.ScopeSender:
			if sender != nil {
				e.send(ctx, sender, ev.Type, ev.Payload)
			}
		case room.ScopeRoom:
			e.broadcastToMembers(ctx, ev.RoomID, ev.Members, ev.Type, ev.Payload)
		case room.ScopeAll:
			e.broadcastAll(ctx, ev.Type, ev.Payload)
		}
	}
}

// BroadcastDirectory pushes the full redacted room list to every
// authenticated connection.
func (e *Engine) BroadcastDirectory(ctx context.Context) {
	e.broadcastAll(ctx, proto.TypeRoomsUpdate, proto.RoomsUpdatePayload{Rooms: e.directory.Summaries()})
}

// BroadcastToRoom sends one message to every member of a room that has a
// live connection.
func (e *Engine) BroadcastToRoom(ctx context.Context, roomID, msgType string, payload any) {
	members, ok := e.directory.Members(roomID)
	if !ok {
		return
	}
	e.broadcastToMembers(ctx, roomID, members, msgType, payload)
}

// SendTo sends one message to the connection bound to identity, if any.
func (e *Engine) SendTo(ctx context.Context, identity, msgType string, payload any) {
	conn, ok := e.registry.ConnectionFor(identity)
	if !ok {
		return
	}
	e.send(ctx, conn, msgType, payload)
}

// SendError surfaces a failure to the originating connection only.
func (e *Engine) SendError(ctx context.Context, conn player.Connection, message string) {
	e.send(ctx, conn, proto.TypeError, proto.ErrorPayload{Message: message})
}

func (e *Engine) broadcastToMembers(ctx context.Context, roomID string, members []string, msgType string, payload any) {
	_, span := tracer.Start(ctx, "broadcast.BroadcastToRoom", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("message.type", msgType),
		attribute.Int("room.members", len(members)),
	))
	defer span.End()

	for _, identity := range members {
		conn, ok := e.registry.ConnectionFor(identity)
		if !ok {
			continue
		}
		e.send(ctx, conn, msgType, payload)
	}
}

func (e *Engine) broadcastAll(ctx context.Context, msgType string, payload any) {
	for _, conn := range e.registry.Connections() {
		e.send(ctx, conn, msgType, payload)
	}
}

func (e *Engine) send(ctx context.Context, conn player.Connection, msgType string, payload any) {
	data, err := proto.Marshal(msgType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "message.type", msgType, "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Best effort; a closed socket will be reaped by its read pump.
		slog.WarnContext(ctx, "error writing message to connection", "message.type", msgType, "error", err)
	}
}
