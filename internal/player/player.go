package player

// Connection abstracts the websocket connection so the coordinator and
// its tests never depend on a live socket. *websocket.Conn satisfies it.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}
