package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Hub relays the battleground protocol between the two clients of a match:
// join/rejoin/leave, forfeiture, result reporting with acknowledgements, and
// presence notifications.
type Hub struct {
	clients      map[*Client]bool
	register     chan *Client
	unregister   chan *Client
	mutex        sync.RWMutex
	matchService *MatchService
}

// Client is one connected player socket.
type Client struct {
	hub      *Hub
	socket   *websocket.Conn
	send     chan []byte
	socketID string
	userID   string
	gameID   string
	name     string
}

// Envelope is the wire format of every socket message.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

type joinGamePayload struct {
	GameID   string `json:"gameId"`
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

type rejoinGamePayload struct {
	GameID           string `json:"gameId"`
	UserID           string `json:"userId"`
	PreviousSocketID string `json:"previousSocketId"`
}

type leaveGamePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type forfeitGamePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type gameResultPayload struct {
	GameID         string `json:"gameId"`
	WinnerSocketID string `json:"winnerSocketId"`
	WinnerName     string `json:"winnerName"`
}

type gameTimeUpPayload struct {
	GameID string `json:"gameId"`
}

type gameEndedPayload struct {
	IsWinner      bool   `json:"isWinner"`
	IsOpponentWon bool   `json:"isOpponentWon"`
	WinnerName    string `json:"winnerName"`
	Margin        string `json:"margin,omitempty"`
}

type presencePayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

func NewHub(matchService *MatchService) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		matchService: matchService,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client registered: socket=%s user=%s game=%s - total clients: %d",
				client.socketID, client.userID, client.gameID, h.clientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

			if ok {
				log.Printf("Client unregistered: socket=%s user=%s game=%s - total clients: %d",
					client.socketID, client.userID, client.gameID, h.clientCount())

				// The match stays alive: the peer's client decides about
				// forfeiture via its own grace timer. We only surface
				// presence.
				if client.gameID != "" {
					h.matchService.DetachSocket(client.gameID, client.socketID)
					h.broadcastToGame(client.gameID, client, EventPlayerDisconnected, presencePayload{
						GameID: client.gameID,
						UserID: client.userID,
					})
				}
			}
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Event names mirrored from the client protocol.
const (
	EventJoinGame           = "joinGame"
	EventRejoinGame         = "rejoinGame"
	EventLeaveGame          = "leaveGame"
	EventForfeitGame        = "forfeitGame"
	EventGameResult         = "gameResult"
	EventGameTimeUp         = "gameTimeUp"
	EventGameEnded          = "gameEnded"
	EventGameForfeited      = "gameForfeited"
	EventPlayerReconnected  = "playerReconnected"
	EventPlayerDisconnected = "playerDisconnected"
	EventAck                = "ack"
	EventPing               = "ping"
	EventPong               = "pong"
	EventError              = "error"
)

// RegisterClient wires a freshly upgraded connection into the hub.
func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		hub:      h,
		socket:   conn,
		send:     make(chan []byte, 256),
		socketID: uuid.NewString(),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

// broadcastToGame sends an event to every client in a game except the sender.
func (h *Hub) broadcastToGame(gameID string, except *Client, event string, payload any) {
	data, err := buildMessage(event, payload, "")
	if err != nil {
		log.Printf("Error marshaling %s message: %v", event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if client.gameID != gameID || client == except {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// endGameFor personalizes the terminal gameEnded event per recipient: the
// winner sees isWinner, everyone else isOpponentWon, ties neither.
func (h *Hub) endGameFor(gameID, winnerSocketID, winnerName, margin string, tie bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		payload := gameEndedPayload{WinnerName: winnerName, Margin: margin}
		if !tie {
			if client.socketID == winnerSocketID {
				payload.IsWinner = true
			} else {
				payload.IsOpponentWon = true
			}
		}
		data, err := buildMessage(EventGameEnded, payload, "")
		if err != nil {
			log.Printf("Error marshaling gameEnded message: %v", err)
			return
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func buildMessage(event string, payload any, ackID string) ([]byte, error) {
	env := Envelope{Event: event, AckID: ackID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			c.sendError("Invalid message format")
			continue
		}

		c.handleMessage(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(env Envelope) {
	switch env.Event {
	case EventPing:
		c.sendMessage(EventPong, nil, "")

	case EventJoinGame:
		var p joinGamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid joinGame payload")
			return
		}
		c.gameID = p.GameID
		c.userID = p.UserID
		if p.SocketID != "" {
			// The client announces its own socket identity; adopt it so
			// winnerSocketId lookups line up.
			c.socketID = p.SocketID
		}
		if err := c.hub.matchService.AttachSocket(p.GameID, p.UserID, c.socketID); err != nil {
			log.Printf("joinGame: attach socket for game %s: %v", p.GameID, err)
		}
		log.Printf("Player %s joined game %s via socket %s", p.UserID, p.GameID, c.socketID)

	case EventRejoinGame:
		var p rejoinGamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid rejoinGame payload")
			return
		}
		c.gameID = p.GameID
		c.userID = p.UserID
		if err := c.hub.matchService.ReattachSocket(p.GameID, p.UserID, p.PreviousSocketID, c.socketID); err != nil {
			log.Printf("rejoinGame: reattach for game %s: %v", p.GameID, err)
			c.sendError("Could not rejoin game")
			return
		}
		log.Printf("Player %s rejoined game %s (previous socket %s, new socket %s)",
			p.UserID, p.GameID, p.PreviousSocketID, c.socketID)
		c.hub.broadcastToGame(p.GameID, c, EventPlayerReconnected, presencePayload{
			GameID: p.GameID,
			UserID: p.UserID,
		})

	case EventLeaveGame:
		var p leaveGamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid leaveGame payload")
			return
		}
		log.Printf("Player %s left game %s", p.UserID, p.GameID)
		c.hub.broadcastToGame(p.GameID, c, EventPlayerDisconnected, presencePayload{
			GameID: p.GameID,
			UserID: p.UserID,
		})
		c.gameID = ""

	case EventForfeitGame:
		var p forfeitGamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid forfeitGame payload")
			return
		}
		log.Printf("Player %s forfeited game %s", p.UserID, p.GameID)
		if _, err := c.hub.matchService.RecordResult(&RecordResultRequest{
			GameID:    p.GameID,
			IsForfeit: true,
			Margin:    "opponent abandoned the match",
		}); err != nil {
			log.Printf("forfeitGame: record result for game %s: %v", p.GameID, err)
		}
		c.hub.broadcastToGame(p.GameID, c, EventGameForfeited, presencePayload{
			GameID: p.GameID,
			UserID: p.UserID,
		})

	case EventGameResult:
		var p gameResultPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid gameResult payload")
			return
		}
		winnerUserID, winnerName, err := c.hub.matchService.WinnerBySocketID(p.GameID, p.WinnerSocketID)
		if err != nil {
			// Fall back to the name the client reported.
			winnerName = p.WinnerName
			log.Printf("gameResult: resolve winner for game %s: %v", p.GameID, err)
		}
		if _, err := c.hub.matchService.RecordResult(&RecordResultRequest{
			GameID:       p.GameID,
			WinnerUserID: winnerUserID,
			WinnerName:   winnerName,
		}); err != nil {
			log.Printf("gameResult: record result for game %s: %v", p.GameID, err)
		}
		// Acknowledge before fanning out so the reporter never waits on
		// the opponent's delivery.
		if env.AckID != "" {
			c.sendMessage(EventAck, nil, env.AckID)
		}
		c.hub.endGameFor(p.GameID, p.WinnerSocketID, winnerName, "", false)

	case EventGameTimeUp:
		var p gameTimeUpPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("Invalid gameTimeUp payload")
			return
		}
		log.Printf("Game %s timed out with no winner", p.GameID)
		if _, err := c.hub.matchService.RecordResult(&RecordResultRequest{
			GameID: p.GameID,
			IsTie:  true,
		}); err != nil {
			log.Printf("gameTimeUp: record result for game %s: %v", p.GameID, err)
		}
		c.hub.endGameFor(p.GameID, "", "", "", true)

	default:
		log.Printf("Unknown message event: %s from user %s in game %s", env.Event, c.userID, c.gameID)
	}
}

func (c *Client) sendMessage(event string, payload any, ackID string) {
	data, err := buildMessage(event, payload, ackID)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", event, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Client %s send buffer full, dropping %s", c.socketID, event)
	}
}

func (c *Client) sendError(message string) {
	c.sendMessage(EventError, map[string]string{"message": message}, "")
}
