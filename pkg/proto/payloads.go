package proto

// Vec2 is a 2D position in game-world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerState is the per-player slice of a room's game state.
type PlayerState struct {
	Position   Vec2    `json:"position"`
	Score      float64 `json:"score"`
	LastUpdate int64   `json:"lastUpdate"` // unix milliseconds, server-stamped
}

// GameState is the authoritative snapshot broadcast to a room.
type GameState struct {
	Players    map[string]PlayerState `json:"players"`
	ServerTime int64                  `json:"serverTime"` // unix milliseconds
}

// RoomSummary is the redacted directory entry sent in ROOMS_UPDATE.
// It intentionally has no password field.
type RoomSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MaxPlayers  int      `json:"maxPlayers"`
	IsPrivate   bool     `json:"isPrivate"`
	Players     []string `json:"players"`
	PlayerCount int      `json:"playerCount"`
	Status      string   `json:"status"`
}

// AuthPayload binds a wallet address to the sending connection.
type AuthPayload struct {
	Address string `json:"address" validate:"required"`
}

type CreateRoomPayload struct {
	RoomID     string `json:"roomId,omitempty"`
	Name       string `json:"name,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty" validate:"omitempty,oneof=2 4"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
	Password   string `json:"password,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	Password string `json:"password,omitempty"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// GameActionPayload and PlayerUpdatePayload both carry a player's new
// state; the server treats them identically.
type GameActionPayload struct {
	Action string      `json:"action,omitempty"`
	State  PlayerState `json:"state"`
}

type PlayerUpdatePayload struct {
	PlayerID  string      `json:"playerId,omitempty"`
	State     PlayerState `json:"state"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// ChatMessage is the client-authored body of a CHAT_MESSAGE. Sender is
// always overwritten server-side with the authenticated identity.
type ChatMessage struct {
	Sender      string `json:"sender"`
	Content     string `json:"content" validate:"required"`
	Timestamp   int64  `json:"timestamp"`
	MessageType string `json:"messageType,omitempty"`
}

type ChatPayload struct {
	RoomID string      `json:"roomId" validate:"required"`
	Data   ChatMessage `json:"data" validate:"required"`
}

// GameStartingPayload is both the client request and the per-member push.
type GameStartingPayload struct {
	RoomID    string   `json:"roomId" validate:"required"`
	Games     []string `json:"games" validate:"required,min=1"`
	Countdown int      `json:"countdown" validate:"omitempty,min=0"`
}

type RPSChoicePayload struct {
	RoomID         string `json:"roomId" validate:"required"`
	PlayerPosition int    `json:"playerPosition"`
	Choice         string `json:"choice" validate:"required,oneof=rock paper scissors"`
}

// RPSChoiceBroadcast adds the resolved sender identity to the room push.
type RPSChoiceBroadcast struct {
	RoomID         string `json:"roomId"`
	PlayerPosition int    `json:"playerPosition"`
	PlayerID       string `json:"playerId"`
	Choice         string `json:"choice"`
}

type RoomsUpdatePayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

type PlayersUpdatePayload struct {
	Players []string `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
