package messages

import "encoding/json"

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 1024
)

// Client message types
const (
	MessageTypeClientRegister   = "register"
	MessageTypeClientCreateRoom = "createRoom"
	MessageTypeClientJoinRoom   = "joinRoom"
	MessageTypeClientLeaveRoom  = "leaveRoom"
	MessageTypeClientStartGame  = "startGame"
	MessageTypeClientNextTurn   = "nextTurn"
)

// Server message types
const (
	MessageTypeServerWelcome           = "welcome"
	MessageTypeServerRoomCreated       = "roomCreated"
	MessageTypeServerRoomJoined        = "roomJoined"
	MessageTypeServerRoomLeft          = "roomLeft"
	MessageTypeServerPlayerListUpdated = "playerListUpdated"
	MessageTypeServerGameStarted       = "gameStarted"
	MessageTypeServerUpdateGameState   = "updateGameState"
	MessageTypeServerError             = "error"
)

// Message represents a generic message for serialization/deserialization.
// ClientID is stamped by the server when a message is read from a connection
// and is never trusted from the wire.
type Message struct {
	ClientID string          `json:"clientID,omitempty"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Player is the wire representation of a registered player.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GameState is the wire representation of a room's shared state.
// CurrentPlayer is null and CurrentTurn is 0 until the game starts.
// Owner is only included in room-level payloads (roomCreated, roomJoined).
type GameState struct {
	Started       bool      `json:"started"`
	Players       []*Player `json:"players"`
	CurrentPlayer *Player   `json:"currentPlayer"`
	CurrentTurn   int       `json:"currentTurn"`
	Owner         *Player   `json:"owner,omitempty"`
}

type ClientRegister struct {
	Username string `json:"username"`
}

// ClientNextTurn is the only room-targeting client payload that wraps the
// room code in an object. joinRoom, leaveRoom and startGame carry the code
// as a bare JSON string.
type ClientNextTurn struct {
	Code string `json:"code"`
}

type ServerWelcome struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type ServerRoomCreated struct {
	Room      string     `json:"room"`
	GameState *GameState `json:"gameState"`
	Players   []*Player  `json:"players"`
}

type ServerRoomJoined struct {
	Room      string     `json:"room"`
	GameState *GameState `json:"gameState"`
	Players   []*Player  `json:"players"`
}

type ServerRoomLeft struct {
	Room string `json:"room"`
}

type ServerPlayerListUpdated struct {
	Players []*Player `json:"players"`
}

type ServerGameStarted struct {
	GameState *GameState `json:"gameState"`
}

type ServerUpdateGameState struct {
	GameState *GameState `json:"gameState"`
}

type ServerError struct {
	Message string `json:"message"`
}
