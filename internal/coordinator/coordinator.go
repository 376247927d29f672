package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gp1080/MrGamePlayer-sub001/internal/broadcast"
	"github.com/gp1080/MrGamePlayer-sub001/internal/player"
	"github.com/gp1080/MrGamePlayer-sub001/internal/registry"
	"github.com/gp1080/MrGamePlayer-sub001/internal/repository"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
	"github.com/gp1080/MrGamePlayer-sub001/internal/validator"
	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

var tracer = otel.Tracer("coordinator")

const (
	errAuthenticationRequired = "Authentication required"
	errMalformedMessage       = "Malformed message"
)

// Inbound is one raw envelope read from a connection.
type Inbound struct {
	Conn player.Connection
	Raw  []byte
}

type handlerFunc func(ctx context.Context, conn player.Connection, identity string, data json.RawMessage)

// Coordinator is the single authority over rooms and connections. One
// goroutine drains the inbound channel and fully processes each message
// before the next, which gives mutual exclusion over the Directory and
// Registry without handlers taking locks mid-mutation. Ordering is
// preserved per connection by the transport; there is no ordering
// guarantee across connections.
type Coordinator struct {
	registry  *registry.Registry
	directory *room.Directory
	engine    *broadcast.Engine
	chatRepo  repository.ChatRepository
	presence  repository.PresenceRepository

	inbound  chan Inbound
	closed   chan player.Connection
	handlers map[string]handlerFunc
}

// New wires the coordinator. chatRepo and presence may be nil, in which
// case chat history and presence mirroring are disabled.
func New(reg *registry.Registry, dir *room.Directory, engine *broadcast.Engine,
	chatRepo repository.ChatRepository, presence repository.PresenceRepository) *Coordinator {

	c := &Coordinator{
		registry:  reg,
		directory: dir,
		engine:    engine,
		chatRepo:  chatRepo,
		presence:  presence,
		inbound:   make(chan Inbound, 256),
		closed:    make(chan player.Connection, 64),
	}
	c.handlers = map[string]handlerFunc{
		proto.TypeCreateRoom:   c.handleCreateRoom,
		proto.TypeJoinRoom:     c.handleJoinRoom,
		proto.TypeLeaveRoom:    c.handleLeaveRoom,
		proto.TypeGameAction:   c.handleGameAction,
		proto.TypePlayerUpdate: c.handlePlayerUpdate,
		proto.TypeGameStarting: c.handleStartGame,
		proto.TypeRPSChoice:    c.handleRPSChoice,
		proto.TypeChatMessage:  c.handleChat,
	}

	if c.chatRepo != nil {
		dir.OnDelete = func(roomID string) {
			if err := c.chatRepo.Clear(context.Background(), roomID); err != nil {
				slog.Warn("failed to clear chat history for deleted room", "room.id", roomID, "error", err)
			}
		}
	}
	return c
}

// Submit queues a raw envelope for processing.
func (c *Coordinator) Submit(conn player.Connection, raw []byte) {
	c.inbound <- Inbound{Conn: conn, Raw: raw}
}

// NotifyClosed reports a closed socket so membership can be cleaned up.
func (c *Coordinator) NotifyClosed(conn player.Connection) {
	c.closed <- conn
}

// Run drains inbound messages until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	slog.InfoContext(ctx, "coordinator started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator stopping")
			return
		case msg := <-c.inbound:
			c.route(ctx, msg)
		case conn := <-c.closed:
			c.handleDisconnect(ctx, conn)
		}
	}
}

// route demultiplexes one envelope by kind. Malformed envelopes are
// logged and answered with an ERROR; the connection stays open.
func (c *Coordinator) route(ctx context.Context, msg Inbound) {
	var env proto.Envelope
	if err := json.Unmarshal(msg.Raw, &env); err != nil {
		slog.WarnContext(ctx, "unparseable envelope", "error", err)
		c.engine.SendError(ctx, msg.Conn, errMalformedMessage)
		return
	}
	if err := validator.Get().Struct(env); err != nil {
		slog.WarnContext(ctx, "invalid envelope", "error", err)
		c.engine.SendError(ctx, msg.Conn, errMalformedMessage)
		return
	}

	ctx, span := tracer.Start(ctx, "coordinator.route", trace.WithAttributes(
		attribute.String("message.type", env.Type),
	))
	defer span.End()

	if env.Type == proto.TypeAuth {
		c.handleAuth(ctx, msg.Conn, env.Data)
		return
	}

	identity, ok := c.registry.IdentityFor(msg.Conn)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated sender")
		c.engine.SendError(ctx, msg.Conn, errAuthenticationRequired)
		return
	}
	span.SetAttributes(attribute.String("player.id", identity))

	handler, ok := c.handlers[env.Type]
	if !ok {
		slog.WarnContext(ctx, "unknown message type", "message.type", env.Type, "player.id", identity)
		c.engine.SendError(ctx, msg.Conn, errMalformedMessage)
		return
	}
	handler(ctx, msg.Conn, identity, env.Data)
}

// decode unmarshals and validates a handler payload.
func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, err
	}
	if err := validator.Get().Struct(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}
