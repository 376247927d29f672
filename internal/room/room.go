package room

import (
	"time"

	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

// Status is the room session state. Closing a room is deletion, not a
// status; an empty room never persists in the Directory.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusStarting Status = "starting"
	StatusPlaying  Status = "playing"
)

const (
	DefaultMaxPlayers = 2
	maxPlayersLarge   = 4
)

// RPSChoice is one player's recorded rock-paper-scissors pick.
type RPSChoice struct {
	Position int
	Choice   string
}

// Room is the server-authoritative unit of a multiplayer session.
// Creator is fixed at creation and is the only identity allowed to move
// the room to StatusStarting.
type Room struct {
	ID            string
	Name          string
	MaxPlayers    int
	IsPrivate     bool
	PasswordHash  string
	Players       []string // ordered, no duplicates, len <= MaxPlayers
	Creator       string
	Status        Status
	Game          *proto.GameState
	SelectedGames []string
	Countdown     int
	RPSChoices    map[string]RPSChoice
	CreatedAt     time.Time
}

func (r *Room) contains(identity string) bool {
	for _, p := range r.Players {
		if p == identity {
			return true
		}
	}
	return false
}

func (r *Room) removePlayer(identity string) bool {
	for i, p := range r.Players {
		if p == identity {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// starter is the identity allowed to start the game: the recorded
// creator, or the first member when the creator field is empty.
func (r *Room) starter() string {
	if r.Creator != "" {
		return r.Creator
	}
	if len(r.Players) > 0 {
		return r.Players[0]
	}
	return ""
}

// Summary returns the redacted directory entry for this room.
func (r *Room) Summary() proto.RoomSummary {
	players := make([]string, len(r.Players))
	copy(players, r.Players)
	return proto.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		MaxPlayers:  r.MaxPlayers,
		IsPrivate:   r.IsPrivate,
		Players:     players,
		PlayerCount: len(players),
		Status:      string(r.Status),
	}
}
