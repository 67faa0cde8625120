package client

import "encoding/json"

// Event names exchanged with the battleground service.
const (
	// Client -> Server
	EventJoinGame    = "joinGame"
	EventRejoinGame  = "rejoinGame"
	EventLeaveGame   = "leaveGame"
	EventForfeitGame = "forfeitGame"
	EventGameResult  = "gameResult"
	EventGameTimeUp  = "gameTimeUp"
	EventPing        = "ping"

	// Server -> Client
	EventGameEnded          = "gameEnded"
	EventGameForfeited      = "gameForfeited"
	EventPlayerReconnected  = "playerReconnected"
	EventPlayerDisconnected = "playerDisconnected"
	EventAck                = "ack"
	EventPong               = "pong"
	EventError              = "error"
)

// Message is the wire envelope for every socket event.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

type JoinGamePayload struct {
	GameID   string `json:"gameId"`
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

type RejoinGamePayload struct {
	GameID           string `json:"gameId"`
	UserID           string `json:"userId"`
	PreviousSocketID string `json:"previousSocketId"`
}

type LeaveGamePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type ForfeitGamePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type GameResultPayload struct {
	GameID         string `json:"gameId"`
	WinnerSocketID string `json:"winnerSocketId"`
	WinnerName     string `json:"winnerName"`
}

type GameTimeUpPayload struct {
	GameID string `json:"gameId"`
}

type GameEndedPayload struct {
	IsWinner      bool   `json:"isWinner"`
	IsOpponentWon bool   `json:"isOpponentWon"`
	WinnerName    string `json:"winnerName"`
	Margin        string `json:"margin,omitempty"`
}

type GameForfeitedPayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId,omitempty"`
}

type PresencePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}
