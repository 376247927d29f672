package room

import (
	"testing"

	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

func eventOfType(events []Event, msgType string) (Event, bool) {
	for _, ev := range events {
		if ev.Type == msgType {
			return ev, true
		}
	}
	return Event{}, false
}

func TestDirectory_CreateRoom_New(t *testing.T) {
	d := NewDirectory()

	events := d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", Name: "lobby"})

	created, ok := eventOfType(events, proto.TypeRoomCreated)
	if !ok {
		t.Fatalf("expected a ROOM_CREATED event, got %v", events)
	}
	if created.Scope != ScopeSender {
		t.Errorf("ROOM_CREATED scope = %v, want ScopeSender", created.Scope)
	}
	if created.Payload.(proto.RoomCreatedPayload).RoomID != "r1" {
		t.Errorf("ROOM_CREATED room id = %v, want r1", created.Payload)
	}

	players, ok := eventOfType(events, proto.TypePlayersUpdate)
	if !ok {
		t.Fatalf("expected a PLAYERS_UPDATE event, got %v", events)
	}
	got := players.Payload.(proto.PlayersUpdatePayload).Players
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("PLAYERS_UPDATE players = %v, want [alice]", got)
	}

	if _, ok := eventOfType(events, proto.TypeRoomsUpdate); !ok {
		t.Errorf("expected a ROOMS_UPDATE event, got %v", events)
	}
	if d.Len() != 1 {
		t.Errorf("directory has %d rooms, want 1", d.Len())
	}
}

func TestDirectory_CreateRoom_GeneratesID(t *testing.T) {
	d := NewDirectory()

	events := d.CreateRoom("alice", proto.CreateRoomPayload{})

	created, ok := eventOfType(events, proto.TypeRoomCreated)
	if !ok {
		t.Fatalf("expected a ROOM_CREATED event, got %v", events)
	}
	id := created.Payload.(proto.RoomCreatedPayload).RoomID
	if id == "" {
		t.Fatal("generated room id is empty")
	}
	if _, ok := d.Members(id); !ok {
		t.Errorf("room %q not registered in directory", id)
	}
}

func TestDirectory_CreateRoom_ExistingBehavesAsJoin(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	events := d.CreateRoom("bob", proto.CreateRoomPayload{RoomID: "r1"})

	if _, ok := eventOfType(events, proto.TypeRoomCreated); ok {
		t.Error("joining an existing room must not emit ROOM_CREATED")
	}
	players, ok := eventOfType(events, proto.TypePlayersUpdate)
	if !ok {
		t.Fatalf("expected a PLAYERS_UPDATE event, got %v", events)
	}
	got := players.Payload.(proto.PlayersUpdatePayload).Players
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("PLAYERS_UPDATE players = %v, want [alice bob]", got)
	}
}

func TestDirectory_CreateRoom_IdempotentForMember(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	events := d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	if len(events) != 1 || events[0].Scope != ScopeSender {
		t.Fatalf("repeat create by a member should resend state to the sender only, got %v", events)
	}
	members, _ := d.Members("r1")
	if len(members) != 1 {
		t.Errorf("members = %v, duplicate membership created", members)
	}
}

func TestDirectory_CreateRoom_FullRoomResendsState(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", MaxPlayers: 2})
	if _, err := d.JoinRoom("bob", "r1", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	events := d.CreateRoom("carol", proto.CreateRoomPayload{RoomID: "r1"})

	if len(events) != 1 || events[0].Scope != ScopeSender {
		t.Fatalf("create on a full room should answer the sender only, got %v", events)
	}
	members, _ := d.Members("r1")
	if len(members) != 2 {
		t.Errorf("members = %v, capacity exceeded", members)
	}
}

func TestDirectory_JoinRoom(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(d *Directory)
		joiner  string
		roomID  string
		pass    string
		wantErr error
	}{
		{
			name:   "unknown room is auto-created",
			setup:  func(d *Directory) {},
			joiner: "alice",
			roomID: "fresh",
		},
		{
			name: "join open room",
			setup: func(d *Directory) {
				d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})
			},
			joiner: "bob",
			roomID: "r1",
		},
		{
			name: "wrong password",
			setup: func(d *Directory) {
				d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", IsPrivate: true, Password: "sekrit"})
			},
			joiner:  "bob",
			roomID:  "r1",
			pass:    "nope",
			wantErr: ErrWrongPassword,
		},
		{
			name: "correct password",
			setup: func(d *Directory) {
				d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", IsPrivate: true, Password: "sekrit"})
			},
			joiner: "bob",
			roomID: "r1",
			pass:   "sekrit",
		},
		{
			name: "full room",
			setup: func(d *Directory) {
				d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", MaxPlayers: 2})
				d.JoinRoom("bob", "r1", "")
			},
			joiner:  "carol",
			roomID:  "r1",
			wantErr: ErrRoomFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectory()
			tt.setup(d)

			events, err := d.JoinRoom(tt.joiner, tt.roomID, tt.pass)
			if err != tt.wantErr {
				t.Fatalf("JoinRoom() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if _, ok := eventOfType(events, proto.TypePlayersUpdate); !ok {
				t.Errorf("expected a PLAYERS_UPDATE event, got %v", events)
			}
			members, _ := d.Members(tt.roomID)
			found := false
			for _, m := range members {
				if m == tt.joiner {
					found = true
				}
			}
			if !found {
				t.Errorf("members = %v, joiner %q missing", members, tt.joiner)
			}
		})
	}
}

func TestDirectory_JoinRoom_IdempotentForMember(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	events, err := d.JoinRoom("alice", "r1", "")
	if err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if len(events) != 1 || events[0].Scope != ScopeSender {
		t.Fatalf("repeat join should resend state to the sender only, got %v", events)
	}
	members, _ := d.Members("r1")
	if len(members) != 1 {
		t.Errorf("members = %v, duplicate membership created", members)
	}
}

func TestDirectory_LeaveRoom_DeletesEmptyRoom(t *testing.T) {
	d := NewDirectory()
	var deleted []string
	d.OnDelete = func(roomID string) { deleted = append(deleted, roomID) }
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	events, err := d.LeaveRoom("alice", "r1")
	if err != nil {
		t.Fatalf("LeaveRoom() error = %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("directory has %d rooms, want 0 after last player left", d.Len())
	}
	if len(deleted) != 1 || deleted[0] != "r1" {
		t.Errorf("OnDelete calls = %v, want [r1]", deleted)
	}
	if _, ok := eventOfType(events, proto.TypeRoomsUpdate); !ok {
		t.Errorf("expected a ROOMS_UPDATE event after deletion, got %v", events)
	}
}

func TestDirectory_LeaveRoom_Errors(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	if _, err := d.LeaveRoom("alice", "missing"); err != ErrRoomNotFound {
		t.Errorf("LeaveRoom(missing) error = %v, want %v", err, ErrRoomNotFound)
	}
	if _, err := d.LeaveRoom("bob", "r1"); err != ErrNotInRoom {
		t.Errorf("LeaveRoom(non-member) error = %v, want %v", err, ErrNotInRoom)
	}
}

func TestDirectory_StartGame_CreatorOnly(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})
	d.JoinRoom("bob", "r1", "")

	_, err := d.StartGame("bob", "r1", []string{"rps"}, 3)
	if err != ErrNotCreator {
		t.Fatalf("StartGame(non-creator) error = %v, want %v", err, ErrNotCreator)
	}
	if err.Error() != "Only the room creator can start the game" {
		t.Errorf("ErrNotCreator message = %q", err.Error())
	}

	events, err := d.StartGame("alice", "r1", []string{"rps"}, 3)
	if err != nil {
		t.Fatalf("StartGame(creator) error = %v", err)
	}
	starting, ok := eventOfType(events, proto.TypeGameStarting)
	if !ok {
		t.Fatalf("expected a GAME_STARTING event, got %v", events)
	}
	if starting.Scope != ScopeRoom {
		t.Errorf("GAME_STARTING scope = %v, want ScopeRoom", starting.Scope)
	}
	payload := starting.Payload.(proto.GameStartingPayload)
	if payload.Countdown != 3 || len(payload.Games) != 1 || payload.Games[0] != "rps" {
		t.Errorf("GAME_STARTING payload = %+v", payload)
	}
}

func TestDirectory_ApplyUpdate(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})
	d.JoinRoom("bob", "r1", "")
	if _, err := d.StartGame("alice", "r1", []string{"race"}, 0); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	events, err := d.ApplyUpdate("bob", proto.PlayerState{Position: proto.Vec2{X: 3, Y: 4}})
	if err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}
	state, ok := eventOfType(events, proto.TypeGameState)
	if !ok {
		t.Fatalf("expected a GAME_STATE event, got %v", events)
	}
	snap := state.Payload.(proto.GameState)
	if snap.ServerTime == 0 {
		t.Error("snapshot ServerTime not stamped")
	}
	got, ok := snap.Players["bob"]
	if !ok {
		t.Fatalf("snapshot players = %v, bob missing", snap.Players)
	}
	if got.Position.X != 3 || got.Position.Y != 4 {
		t.Errorf("bob position = %+v, want (3,4)", got.Position)
	}
	if got.LastUpdate == 0 {
		t.Error("player LastUpdate not stamped")
	}

	// First update after GAME_STARTING flips the room to playing.
	found := false
	for _, s := range d.Summaries() {
		if s.ID == "r1" {
			found = true
			if s.Status != string(StatusPlaying) {
				t.Errorf("room status = %q, want playing", s.Status)
			}
		}
	}
	if !found {
		t.Fatal("room r1 missing from summaries")
	}
}

func TestDirectory_ApplyUpdate_NotInAnyRoom(t *testing.T) {
	d := NewDirectory()
	if _, err := d.ApplyUpdate("ghost", proto.PlayerState{}); err != ErrRoomNotFound {
		t.Errorf("ApplyUpdate() error = %v, want %v", err, ErrRoomNotFound)
	}
}

func TestDirectory_RecordRPSChoice_IncludesSender(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})

	events, err := d.RecordRPSChoice("alice", "r1", 1, "rock")
	if err != nil {
		t.Fatalf("RecordRPSChoice() error = %v", err)
	}
	choice, ok := eventOfType(events, proto.TypeRPSChoice)
	if !ok {
		t.Fatalf("expected an RPS_CHOICE event, got %v", events)
	}
	if choice.Scope != ScopeRoom {
		t.Errorf("RPS_CHOICE scope = %v, want ScopeRoom", choice.Scope)
	}
	payload := choice.Payload.(proto.RPSChoiceBroadcast)
	if payload.PlayerID != "alice" || payload.Choice != "rock" || payload.PlayerPosition != 1 {
		t.Errorf("RPS_CHOICE payload = %+v", payload)
	}
}

func TestDirectory_Disconnect(t *testing.T) {
	d := NewDirectory()
	var deleted []string
	d.OnDelete = func(roomID string) { deleted = append(deleted, roomID) }
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1"})
	d.JoinRoom("bob", "r1", "")
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r2"})

	events := d.Disconnect("alice")

	members, ok := d.Members("r1")
	if !ok || len(members) != 1 || members[0] != "bob" {
		t.Errorf("r1 members = %v, want [bob]", members)
	}
	if _, ok := d.Members("r2"); ok {
		t.Error("r2 should be deleted once empty")
	}
	if len(deleted) != 1 || deleted[0] != "r2" {
		t.Errorf("OnDelete calls = %v, want [r2]", deleted)
	}
	if _, ok := eventOfType(events, proto.TypeRoomsUpdate); !ok {
		t.Errorf("expected a ROOMS_UPDATE event, got %v", events)
	}
}

func TestDirectory_Summaries_RedactPasswords(t *testing.T) {
	d := NewDirectory()
	d.CreateRoom("alice", proto.CreateRoomPayload{RoomID: "r1", IsPrivate: true, Password: "sekrit"})

	summaries := d.Summaries()
	if len(summaries) != 1 {
		t.Fatalf("summaries = %v, want one entry", summaries)
	}
	s := summaries[0]
	if !s.IsPrivate {
		t.Error("summary should keep the private flag")
	}
	if s.PlayerCount != 1 || len(s.Players) != 1 {
		t.Errorf("summary player data = %+v", s)
	}
}

func TestNormalizeMaxPlayers(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 2},
		{2, 2},
		{3, 2},
		{4, 4},
		{8, 2},
	}
	for _, tt := range tests {
		if got := normalizeMaxPlayers(tt.in); got != tt.want {
			t.Errorf("normalizeMaxPlayers(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
