package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gp1080/MrGamePlayer-sub001/internal/player"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

// handleAuth binds the claimed wallet address to the sending connection
// and pushes the current room directory to it. A prior connection for
// the same address is displaced without notification.
func (c *Coordinator) handleAuth(ctx context.Context, conn player.Connection, data json.RawMessage) {
	payload, err := decode[proto.AuthPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	c.registry.Authenticate(conn, payload.Address)
	slog.InfoContext(ctx, "player authenticated", "player.id", payload.Address)

	if c.presence != nil {
		if err := c.presence.SetOnline(ctx, payload.Address); err != nil {
			slog.WarnContext(ctx, "failed to mirror presence", "player.id", payload.Address, "error", err)
		}
	}

	raw, marshalErr := proto.Marshal(proto.TypeRoomsUpdate, proto.RoomsUpdatePayload{Rooms: c.directory.Summaries()})
	if marshalErr == nil {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			slog.WarnContext(ctx, "failed to send initial directory", "player.id", payload.Address, "error", err)
		}
	}
}

func (c *Coordinator) handleCreateRoom(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.CreateRoomPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	events := c.directory.CreateRoom(identity, payload)
	c.engine.Dispatch(ctx, events, conn)
	c.mirrorRoom(ctx, identity, roomIDFrom(events, payload.RoomID))
}

// roomIDFrom recovers the room id when the client let the server
// generate one.
func roomIDFrom(events []room.Event, fallback string) string {
	for _, ev := range events {
		if ev.RoomID != "" {
			return ev.RoomID
		}
	}
	return fallback
}

func (c *Coordinator) handleJoinRoom(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.JoinRoomPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	events, err := c.directory.JoinRoom(identity, payload.RoomID, payload.Password)
	if err != nil {
		c.engine.SendError(ctx, conn, err.Error())
		return
	}
	c.engine.Dispatch(ctx, events, conn)
	c.mirrorRoom(ctx, identity, payload.RoomID)

	// Late joiners get the room's recent chat so the conversation has
	// context.
	if c.chatRepo != nil {
		history, err := c.chatRepo.History(ctx, payload.RoomID)
		if err != nil {
			slog.WarnContext(ctx, "failed to load chat history", "room.id", payload.RoomID, "error", err)
			return
		}
		for _, msg := range history {
			c.engine.SendTo(ctx, identity, proto.TypeChatMessage, proto.ChatPayload{RoomID: payload.RoomID, Data: msg})
		}
	}
}

func (c *Coordinator) handleLeaveRoom(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.LeaveRoomPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	events, err := c.directory.LeaveRoom(identity, payload.RoomID)
	if err != nil {
		c.engine.SendError(ctx, conn, err.Error())
		return
	}
	c.engine.Dispatch(ctx, events, conn)
	c.mirrorRoom(ctx, identity, "")
}

func (c *Coordinator) handleStartGame(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.GameStartingPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	events, err := c.directory.StartGame(identity, payload.RoomID, payload.Games, payload.Countdown)
	if err != nil {
		c.engine.SendError(ctx, conn, err.Error())
		return
	}
	c.engine.Dispatch(ctx, events, conn)
}

// handleGameAction and handlePlayerUpdate both funnel into ApplyUpdate:
// locate the sender's room by membership, mutate its slice of the game
// state, and broadcast the full snapshot.
func (c *Coordinator) handleGameAction(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.GameActionPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}
	c.applyUpdate(ctx, conn, identity, payload.State)
}

func (c *Coordinator) handlePlayerUpdate(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.PlayerUpdatePayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}
	c.applyUpdate(ctx, conn, identity, payload.State)
}

func (c *Coordinator) applyUpdate(ctx context.Context, conn player.Connection, identity string, state proto.PlayerState) {
	events, err := c.directory.ApplyUpdate(identity, state)
	if err != nil {
		c.engine.SendError(ctx, conn, err.Error())
		return
	}
	c.engine.Dispatch(ctx, events, conn)
}

func (c *Coordinator) handleRPSChoice(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.RPSChoicePayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	events, err := c.directory.RecordRPSChoice(identity, payload.RoomID, payload.PlayerPosition, payload.Choice)
	if err != nil {
		c.engine.SendError(ctx, conn, err.Error())
		return
	}
	c.engine.Dispatch(ctx, events, conn)
}

func (c *Coordinator) handleChat(ctx context.Context, conn player.Connection, identity string, data json.RawMessage) {
	payload, err := decode[proto.ChatPayload](data)
	if err != nil {
		c.malformed(ctx, conn, err)
		return
	}

	if _, ok := c.directory.Members(payload.RoomID); !ok {
		c.engine.SendError(ctx, conn, room.ErrRoomNotFound.Error())
		return
	}

	if payload.Data.Timestamp == 0 {
		payload.Data.Timestamp = time.Now().UnixMilli()
	}
	payload.Data.Sender = identity

	c.engine.BroadcastToRoom(ctx, payload.RoomID, proto.TypeChatMessage, payload)

	if c.chatRepo != nil {
		if err := c.chatRepo.Append(ctx, payload.RoomID, payload.Data); err != nil {
			slog.WarnContext(ctx, "failed to append chat history", "room.id", payload.RoomID, "error", err)
		}
	}
}

// handleDisconnect synthesizes a leave for every room containing the
// identity bound to the closed socket, then drops the binding.
func (c *Coordinator) handleDisconnect(ctx context.Context, conn player.Connection) {
	ctx, span := tracer.Start(ctx, "coordinator.handleDisconnect")
	defer span.End()

	identity, ok := c.registry.Drop(conn)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("player.id", identity))
	slog.InfoContext(ctx, "player disconnected", "player.id", identity)

	events := c.directory.Disconnect(identity)
	c.engine.Dispatch(ctx, events, nil)

	if c.presence != nil {
		if err := c.presence.SetOffline(ctx, identity); err != nil {
			slog.WarnContext(ctx, "failed to mirror presence", "player.id", identity, "error", err)
		}
	}
}

func (c *Coordinator) malformed(ctx context.Context, conn player.Connection, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, "malformed payload")
	slog.WarnContext(ctx, "malformed payload", "error", err)
	c.engine.SendError(ctx, conn, errMalformedMessage)
}

func (c *Coordinator) mirrorRoom(ctx context.Context, identity, roomID string) {
	if c.presence == nil {
		return
	}
	if err := c.presence.SetRoom(ctx, identity, roomID); err != nil {
		slog.WarnContext(ctx, "failed to mirror room presence", "player.id", identity, "error", err)
	}
}
