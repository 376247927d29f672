package proto

import "encoding/json"

// Message kinds accepted from clients.
const (
	TypeAuth         = "AUTH"
	TypeCreateRoom   = "CREATE_ROOM"
	TypeJoinRoom     = "JOIN_ROOM"
	TypeLeaveRoom    = "LEAVE_ROOM"
	TypeGameAction   = "GAME_ACTION"
	TypeChatMessage  = "CHAT_MESSAGE"
	TypePlayerUpdate = "PLAYER_UPDATE"
	TypeGameStarting = "GAME_STARTING"
	TypeRPSChoice    = "RPS_CHOICE"
)

// Message kinds sent to clients.
const (
	TypeRoomsUpdate   = "ROOMS_UPDATE"
	TypeRoomCreated   = "ROOM_CREATED"
	TypePlayersUpdate = "PLAYERS_UPDATE"
	TypeGameState     = "GAME_STATE"
	TypeError         = "ERROR"
)

// Envelope is the canonical frame for every message in both directions.
// The payload always lives under "data".
type Envelope struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal wraps a payload in an Envelope and returns the wire bytes.
func Marshal(msgType string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}
