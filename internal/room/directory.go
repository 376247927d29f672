package room

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

// Scope selects which connections receive an outbound event.
type Scope int

const (
	// ScopeSender delivers to the originating connection only.
	ScopeSender Scope = iota
	// ScopeRoom delivers to every member with a live connection.
	ScopeRoom
	// ScopeAll delivers to every authenticated connection.
	ScopeAll
)

// Event is an outbound message produced by a Directory operation. Room
// membership is snapshotted at mutation time so delivery stays correct
// even if the room is mutated or deleted before the fan-out happens.
type Event struct {
	Scope   Scope
	RoomID  string
	Members []string
	Type    string
	Payload any
}

// Directory is the sole writer of room membership and state. All rooms
// are memory-resident for the process lifetime; there is no persistence.
// Mutations arrive one at a time from the coordinator goroutine; the
// mutex exists so read-only views (REST directory listing) can be served
// from other goroutines.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	// OnDelete, when set, runs after a room is removed from the
	// directory. Used to clear room-scoped chat history.
	OnDelete func(roomID string)
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*Room)}
}

// CreateRoom creates or idempotently joins a room. There is no error
// path: an existing id behaves as a join, and an already-present member
// just gets its membership resent.
func (d *Directory) CreateRoom(identity string, p proto.CreateRoomPayload) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.rooms[p.RoomID]; ok {
		if r.contains(identity) {
			return []Event{playersUpdateFor(r, ScopeSender)}
		}
		if len(r.Players) >= r.MaxPlayers {
			// Join-via-create on a full room: resend state rather than
			// violate the capacity invariant.
			return []Event{playersUpdateFor(r, ScopeSender)}
		}
		r.Players = append(r.Players, identity)
		return []Event{playersUpdateFor(r, ScopeRoom), d.roomsUpdateLocked()}
	}

	r := &Room{
		ID:         p.RoomID,
		Name:       p.Name,
		MaxPlayers: normalizeMaxPlayers(p.MaxPlayers),
		IsPrivate:  p.IsPrivate,
		Players:    []string{identity},
		Creator:    identity,
		Status:     StatusWaiting,
		RPSChoices: make(map[string]RPSChoice),
		CreatedAt:  time.Now(),
	}
	if r.ID == "" {
		r.ID = newRoomID()
	}
	if r.Name == "" {
		r.Name = r.ID
	}
	if p.IsPrivate && p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash room password, room will be open", "room.id", r.ID, "error", err)
		} else {
			r.PasswordHash = string(hash)
		}
	}
	d.rooms[r.ID] = r
	slog.Info("room created", "room.id", r.ID, "player.id", identity)

	return []Event{
		{Scope: ScopeSender, Type: proto.TypeRoomCreated, Payload: proto.RoomCreatedPayload{RoomID: r.ID}},
		playersUpdateFor(r, ScopeRoom),
		d.roomsUpdateLocked(),
	}
}

// JoinRoom appends identity to a room. An unknown room id is created on
// the fly with the joining identity as creator, making join-by-id
// equivalent to create.
func (d *Directory) JoinRoom(identity, roomID, password string) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		r = &Room{
			ID:         roomID,
			Name:       roomID,
			MaxPlayers: DefaultMaxPlayers,
			Players:    []string{identity},
			Creator:    identity,
			Status:     StatusWaiting,
			RPSChoices: make(map[string]RPSChoice),
			CreatedAt:  time.Now(),
		}
		d.rooms[roomID] = r
		slog.Info("room auto-created on join", "room.id", roomID, "player.id", identity)
		return []Event{playersUpdateFor(r, ScopeRoom), d.roomsUpdateLocked()}, nil
	}

	if r.IsPrivate && r.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) != nil {
			return nil, ErrWrongPassword
		}
	}
	if r.contains(identity) {
		return []Event{playersUpdateFor(r, ScopeSender)}, nil
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, ErrRoomFull
	}

	r.Players = append(r.Players, identity)
	slog.Info("player joined room", "room.id", roomID, "player.id", identity)
	return []Event{playersUpdateFor(r, ScopeRoom), d.roomsUpdateLocked()}, nil
}

// LeaveRoom removes identity from a room, deleting the room the moment
// it becomes empty.
func (d *Directory) LeaveRoom(identity, roomID string) ([]Event, error) {
	d.mu.Lock()
	events, deleted, err := d.leaveLocked(identity, roomID)
	d.mu.Unlock()

	if err == nil {
		d.notifyDeleted(deleted)
	}
	return events, err
}

func (d *Directory) leaveLocked(identity, roomID string) ([]Event, []string, error) {
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if !r.removePlayer(identity) {
		return nil, nil, ErrNotInRoom
	}
	if r.Game != nil {
		delete(r.Game.Players, identity)
	}
	delete(r.RPSChoices, identity)

	if len(r.Players) == 0 {
		delete(d.rooms, roomID)
		slog.Info("room deleted, last player left", "room.id", roomID)
		return []Event{d.roomsUpdateLocked()}, []string{roomID}, nil
	}

	slog.Info("player left room", "room.id", roomID, "player.id", identity)
	return []Event{playersUpdateFor(r, ScopeRoom), d.roomsUpdateLocked()}, nil, nil
}

// StartGame transitions a room to starting. Only the recorded creator,
// or the first member when the creator field is unset, may invoke it.
func (d *Directory) StartGame(identity, roomID string, games []string, countdown int) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if identity != r.starter() {
		return nil, ErrNotCreator
	}

	r.Status = StatusStarting
	r.SelectedGames = append([]string(nil), games...)
	r.Countdown = countdown
	slog.Info("game starting", "room.id", roomID, "games", games, "countdown", countdown)

	return []Event{{
		Scope:   ScopeRoom,
		RoomID:  r.ID,
		Members: append([]string(nil), r.Players...),
		Type:    proto.TypeGameStarting,
		Payload: proto.GameStartingPayload{RoomID: r.ID, Games: r.SelectedGames, Countdown: countdown},
	}}, nil
}

// ApplyUpdate mutates a player's state in whichever room contains the
// identity and broadcasts the full snapshot to that room. This path is
// keyed by membership, not by room id.
func (d *Directory) ApplyUpdate(identity string, state proto.PlayerState) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.roomContainingLocked(identity)
	if r == nil {
		return nil, ErrRoomNotFound
	}

	now := time.Now().UnixMilli()
	if r.Game == nil {
		r.Game = &proto.GameState{Players: make(map[string]proto.PlayerState)}
	}
	state.LastUpdate = now
	r.Game.Players[identity] = state
	r.Game.ServerTime = now
	if r.Status == StatusStarting {
		r.Status = StatusPlaying
	}

	return []Event{{
		Scope:   ScopeRoom,
		RoomID:  r.ID,
		Members: append([]string(nil), r.Players...),
		Type:    proto.TypeGameState,
		Payload: snapshotOf(r.Game),
	}}, nil
}

// RecordRPSChoice stores a rock-paper-scissors pick and broadcasts it to
// the whole room, sender included.
func (d *Directory) RecordRPSChoice(identity, roomID string, position int, choice string) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.RPSChoices[identity] = RPSChoice{Position: position, Choice: choice}

	return []Event{{
		Scope:   ScopeRoom,
		RoomID:  r.ID,
		Members: append([]string(nil), r.Players...),
		Type:    proto.TypeRPSChoice,
		Payload: proto.RPSChoiceBroadcast{RoomID: roomID, PlayerPosition: position, PlayerID: identity, Choice: choice},
	}}, nil
}

// Disconnect synthesizes a leave for every room containing the identity.
func (d *Directory) Disconnect(identity string) []Event {
	d.mu.Lock()

	var ids []string
	for id, r := range d.rooms {
		if r.contains(identity) {
			ids = append(ids, id)
		}
	}

	var events []Event
	var deleted []string
	for _, id := range ids {
		evts, gone, err := d.leaveLocked(identity, id)
		if err != nil {
			continue
		}
		events = append(events, evts...)
		deleted = append(deleted, gone...)
	}
	d.mu.Unlock()

	d.notifyDeleted(deleted)
	return events
}

// Members returns a copy of a room's ordered membership.
func (d *Directory) Members(roomID string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	return append([]string(nil), r.Players...), true
}

// Summaries returns the redacted room list for ROOMS_UPDATE and the REST view.
func (d *Directory) Summaries() []proto.RoomSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.summariesLocked()
}

// Len reports the number of live rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func (d *Directory) summariesLocked() []proto.RoomSummary {
	out := make([]proto.RoomSummary, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r.Summary())
	}
	return out
}

func (d *Directory) roomsUpdateLocked() Event {
	return Event{
		Scope:   ScopeAll,
		Type:    proto.TypeRoomsUpdate,
		Payload: proto.RoomsUpdatePayload{Rooms: d.summariesLocked()},
	}
}

func (d *Directory) roomContainingLocked(identity string) *Room {
	for _, r := range d.rooms {
		if r.contains(identity) {
			return r
		}
	}
	return nil
}

func (d *Directory) notifyDeleted(roomIDs []string) {
	if d.OnDelete == nil {
		return
	}
	for _, id := range roomIDs {
		d.OnDelete(id)
	}
}

func playersUpdateFor(r *Room, scope Scope) Event {
	return Event{
		Scope:   scope,
		RoomID:  r.ID,
		Members: append([]string(nil), r.Players...),
		Type:    proto.TypePlayersUpdate,
		Payload: proto.PlayersUpdatePayload{Players: append([]string(nil), r.Players...)},
	}
}

func snapshotOf(g *proto.GameState) proto.GameState {
	players := make(map[string]proto.PlayerState, len(g.Players))
	for id, s := range g.Players {
		players[id] = s
	}
	return proto.GameState{Players: players, ServerTime: g.ServerTime}
}

func normalizeMaxPlayers(n int) int {
	if n == maxPlayersLarge {
		return n
	}
	return DefaultMaxPlayers
}

// newRoomID returns a short random token for rooms created without a
// client-supplied id.
func newRoomID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in serious trouble,
		// but a room id must still come back.
		return "room-fallback"
	}
	return hex.EncodeToString(b)
}
