package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gp1080/MrGamePlayer-sub001/internal/gamesync"
	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

// Handlers are optional callbacks for server pushes. Nil entries are
// skipped.
type Handlers struct {
	OnRoomsUpdate   func([]proto.RoomSummary)
	OnRoomCreated   func(roomID string)
	OnPlayersUpdate func(players []string)
	OnGameStarting  func(proto.GameStartingPayload)
	OnRPSChoice     func(proto.RPSChoiceBroadcast)
	OnChat          func(proto.ChatPayload)
	OnError         func(message string)
}

// Client is the session glue between a game front end and the
// coordinator: it authenticates, issues room operations, forwards local
// state immediately, and feeds inbound snapshots to the Synchronizer so
// rendering gets smooth positions.
type Client struct {
	conn     *websocket.Conn
	sync     *gamesync.Synchronizer
	handlers Handlers

	identity string

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// Dial connects to the coordinator's websocket endpoint and starts the
// read loop.
func Dial(ctx context.Context, url string, handlers Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		sync:     gamesync.New(),
		handlers: handlers,
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Synchronizer exposes the state synchronizer for the render loop.
func (c *Client) Synchronizer() *gamesync.Synchronizer {
	return c.sync
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// Authenticate binds the wallet address to this connection.
func (c *Client) Authenticate(address string) error {
	c.identity = address
	return c.send(proto.TypeAuth, proto.AuthPayload{Address: address})
}

func (c *Client) CreateRoom(p proto.CreateRoomPayload) error {
	return c.send(proto.TypeCreateRoom, p)
}

func (c *Client) JoinRoom(roomID, password string) error {
	return c.send(proto.TypeJoinRoom, proto.JoinRoomPayload{RoomID: roomID, Password: password})
}

func (c *Client) LeaveRoom(roomID string) error {
	return c.send(proto.TypeLeaveRoom, proto.LeaveRoomPayload{RoomID: roomID})
}

func (c *Client) StartGame(roomID string, games []string, countdown int) error {
	return c.send(proto.TypeGameStarting, proto.GameStartingPayload{RoomID: roomID, Games: games, Countdown: countdown})
}

func (c *Client) SendChat(roomID, content string) error {
	return c.send(proto.TypeChatMessage, proto.ChatPayload{
		RoomID: roomID,
		Data: proto.ChatMessage{
			Sender:    c.identity,
			Content:   content,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

func (c *Client) SendRPSChoice(roomID string, position int, choice string) error {
	return c.send(proto.TypeRPSChoice, proto.RPSChoicePayload{RoomID: roomID, PlayerPosition: position, Choice: choice})
}

// SendUpdate pushes local state to the server immediately, with no
// batching or debouncing, and seeds a self-interpolation toward the same
// target so local rendering does not wait for the round trip.
func (c *Client) SendUpdate(state proto.PlayerState) error {
	c.sync.SeedLocal(c.identity, state.Position, time.Now())
	return c.send(proto.TypePlayerUpdate, proto.PlayerUpdatePayload{
		PlayerID:  c.identity,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *Client) send(msgType string, payload any) error {
	data, err := proto.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			slog.Debug("client connection closed", "error", err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("client received unparseable envelope", "error", err)
		return
	}

	switch env.Type {
	case proto.TypeGameState:
		var snap proto.GameState
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			slog.Warn("bad GAME_STATE payload", "error", err)
			return
		}
		c.sync.Ingest(snap, time.Now())

	case proto.TypeRoomsUpdate:
		var p proto.RoomsUpdatePayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnRoomsUpdate != nil {
			c.handlers.OnRoomsUpdate(p.Rooms)
		}

	case proto.TypeRoomCreated:
		var p proto.RoomCreatedPayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnRoomCreated != nil {
			c.handlers.OnRoomCreated(p.RoomID)
		}

	case proto.TypePlayersUpdate:
		var p proto.PlayersUpdatePayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnPlayersUpdate != nil {
			c.handlers.OnPlayersUpdate(p.Players)
		}

	case proto.TypeGameStarting:
		var p proto.GameStartingPayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnGameStarting != nil {
			c.handlers.OnGameStarting(p)
		}

	case proto.TypeRPSChoice:
		var p proto.RPSChoiceBroadcast
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnRPSChoice != nil {
			c.handlers.OnRPSChoice(p)
		}

	case proto.TypeChatMessage:
		var p proto.ChatPayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnChat != nil {
			c.handlers.OnChat(p)
		}

	case proto.TypeError:
		var p proto.ErrorPayload
		if json.Unmarshal(env.Data, &p) == nil && c.handlers.OnError != nil {
			c.handlers.OnError(p.Message)
		}

	default:
		slog.Debug("client ignoring unknown message type", "message.type", env.Type)
	}
}
