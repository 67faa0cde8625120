package services

import (
	"encoding/json"
	"testing"
)

func newHubClient(h *Hub, gameID, socketID string) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan []byte, 8),
		socketID: socketID,
		gameID:   gameID,
	}
	h.mutex.Lock()
	h.clients[c] = true
	h.mutex.Unlock()
	return c
}

func decodeSent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		return env
	default:
		t.Fatal("no message queued for client")
		return Envelope{}
	}
}

func TestBuildMessage(t *testing.T) {
	data, err := buildMessage(EventAck, map[string]string{"ok": "yes"}, "ack-1")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EventAck || env.AckID != "ack-1" {
		t.Fatalf("envelope = %+v", env)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload["ok"] != "yes" {
		t.Fatalf("payload = %s, %v", env.Payload, err)
	}
}

func TestEndGameForPersonalizes(t *testing.T) {
	h := NewHub(nil)
	winner := newHubClient(h, "game-1", "socket-w")
	loser := newHubClient(h, "game-1", "socket-l")
	bystander := newHubClient(h, "game-2", "socket-b")

	h.endGameFor("game-1", "socket-w", "alice", "with 3:00 left on the clock", false)

	wEnv := decodeSent(t, winner)
	var wp gameEndedPayload
	json.Unmarshal(wEnv.Payload, &wp)
	if !wp.IsWinner || wp.IsOpponentWon || wp.WinnerName != "alice" {
		t.Fatalf("winner payload = %+v", wp)
	}

	lEnv := decodeSent(t, loser)
	var lp gameEndedPayload
	json.Unmarshal(lEnv.Payload, &lp)
	if lp.IsWinner || !lp.IsOpponentWon || lp.WinnerName != "alice" {
		t.Fatalf("loser payload = %+v", lp)
	}
	if lp.Margin != "with 3:00 left on the clock" {
		t.Fatalf("loser margin = %q", lp.Margin)
	}

	select {
	case data := <-bystander.send:
		t.Fatalf("client in another game received %s", data)
	default:
	}
}

func TestEndGameForTie(t *testing.T) {
	h := NewHub(nil)
	a := newHubClient(h, "game-1", "socket-a")
	b := newHubClient(h, "game-1", "socket-b")

	h.endGameFor("game-1", "", "", "", true)

	for _, c := range []*Client{a, b} {
		env := decodeSent(t, c)
		var p gameEndedPayload
		json.Unmarshal(env.Payload, &p)
		if p.IsWinner || p.IsOpponentWon {
			t.Fatalf("tie payload carries a winner flag: %+v", p)
		}
	}
}

func TestBroadcastToGameSkipsSender(t *testing.T) {
	h := NewHub(nil)
	sender := newHubClient(h, "game-1", "socket-s")
	peer := newHubClient(h, "game-1", "socket-p")

	h.broadcastToGame("game-1", sender, EventPlayerReconnected, presencePayload{
		GameID: "game-1",
		UserID: "user-s",
	})

	env := decodeSent(t, peer)
	if env.Event != EventPlayerReconnected {
		t.Fatalf("peer received %q", env.Event)
	}
	var p presencePayload
	json.Unmarshal(env.Payload, &p)
	if p.UserID != "user-s" {
		t.Fatalf("presence payload = %+v", p)
	}

	select {
	case <-sender.send:
		t.Fatal("sender must not receive its own broadcast")
	default:
	}
}

func TestBroadcastEvictsClientWithFullBuffer(t *testing.T) {
	h := NewHub(nil)
	stuck := &Client{hub: h, send: make(chan []byte), gameID: "game-1", socketID: "socket-x"}
	h.mutex.Lock()
	h.clients[stuck] = true
	h.mutex.Unlock()

	h.broadcastToGame("game-1", nil, EventPlayerDisconnected, presencePayload{GameID: "game-1"})

	h.mutex.RLock()
	_, present := h.clients[stuck]
	h.mutex.RUnlock()
	if present {
		t.Fatal("client with a full send buffer must be evicted")
	}
	if _, open := <-stuck.send; open {
		t.Fatal("evicted client's send channel must be closed")
	}
}

func TestHandleMessagePing(t *testing.T) {
	h := NewHub(nil)
	c := newHubClient(h, "", "socket-1")

	c.handleMessage(Envelope{Event: EventPing})

	env := decodeSent(t, c)
	if env.Event != EventPong {
		t.Fatalf("reply = %q, want pong", env.Event)
	}
}
