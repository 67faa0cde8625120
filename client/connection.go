package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("socket is not connected")
	ErrClosed       = errors.New("connection manager is closed")
	ErrAckTimeout   = errors.New("no acknowledgement received")
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectBaseDelay   = 1 * time.Second
	defaultReconnectMaxDelay    = 10 * time.Second
	defaultForfeitGracePeriod   = 30 * time.Second
)

// EventHandler receives the raw payload of a server event.
type EventHandler func(payload json.RawMessage)

// Config configures a ConnectionManager.
type Config struct {
	URL   string
	Store SessionStore

	// Optional. Zero values fall back to production defaults.
	Clock                Clock
	Dialer               *websocket.Dialer
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ForfeitGracePeriod   time.Duration

	// OnConnectionChange is invoked whenever socket-level connectivity
	// flips, so the embedding UI can show a connectivity banner.
	OnConnectionChange func(connected bool)

	// OnForfeit is invoked when the grace timer declares the local
	// player's active game forfeited.
	OnForfeit func(gameID string)
}

// ConnectionManager owns the single live socket connection: establishing it,
// reconnecting with capped backoff after transient loss, rejoining the
// persisted current game after a reconnect, and declaring forfeiture when a
// disconnect outlives the grace period.
//
// Only the ConnectionManager creates or destroys the underlying connection;
// other subsystems emit through it.
type ConnectionManager struct {
	url    string
	store  SessionStore
	clock  Clock
	dialer *websocket.Dialer

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	grace       time.Duration

	onChange  func(bool)
	onForfeit func(string)

	userID string

	writeMu sync.Mutex // serializes writes to the live conn

	mu                sync.Mutex
	conn              *websocket.Conn
	socketID          string
	lastKnownSocketID string
	connected         bool
	online            bool
	closed            bool
	gameID            string
	forfeitTimer      Timer
	forfeitSent       bool
	pendingForfeit    *ForfeitGamePayload
	reconnecting      bool
	handlers          map[string]EventHandler
	acks              map[string]chan json.RawMessage
	done              chan struct{}
}

// NewConnectionManager builds a manager bound to the stable persisted user
// identity. It does not dial; call Connect.
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	if cfg.URL == "" {
		return nil, errors.New("client: URL is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("client: SessionStore is required")
	}
	userID, err := cfg.Store.UserID()
	if err != nil {
		return nil, fmt.Errorf("client: load user id: %w", err)
	}

	m := &ConnectionManager{
		url:         cfg.URL,
		store:       cfg.Store,
		clock:       cfg.Clock,
		dialer:      cfg.Dialer,
		maxAttempts: cfg.MaxReconnectAttempts,
		baseDelay:   cfg.ReconnectBaseDelay,
		maxDelay:    cfg.ReconnectMaxDelay,
		grace:       cfg.ForfeitGracePeriod,
		onChange:    cfg.OnConnectionChange,
		onForfeit:   cfg.OnForfeit,
		userID:      userID,
		online:      true,
		handlers:    make(map[string]EventHandler),
		acks:        make(map[string]chan json.RawMessage),
		done:        make(chan struct{}),
	}
	if m.clock == nil {
		m.clock = NewClock()
	}
	if m.dialer == nil {
		m.dialer = websocket.DefaultDialer
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultMaxReconnectAttempts
	}
	if m.baseDelay <= 0 {
		m.baseDelay = defaultReconnectBaseDelay
	}
	if m.maxDelay <= 0 {
		m.maxDelay = defaultReconnectMaxDelay
	}
	if m.grace <= 0 {
		m.grace = defaultForfeitGracePeriod
	}

	// Restore the persisted game so a process restart can still rejoin.
	if game, err := m.store.CurrentGame(); err == nil {
		m.gameID = game.GameID
	}

	return m, nil
}

// Connect dials the battleground service, retrying with capped backoff up to
// the configured attempt count.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	return m.connectWithRetry(ctx)
}

func (m *ConnectionManager) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.mu.Lock()
		closed := m.closed
		online := m.online
		m.mu.Unlock()
		if closed {
			return ErrClosed
		}
		if !online {
			return ErrNotConnected
		}

		conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
		if err == nil {
			m.handleConnect(conn)
			return nil
		}
		lastErr = err
		log.Printf("Connection attempt %d/%d to %s failed: %v", attempt, m.maxAttempts, m.url, err)

		if attempt == m.maxAttempts {
			break
		}
		if err := m.waitBackoff(ctx, attempt); err != nil {
			return err
		}
	}
	return fmt.Errorf("client: all %d connection attempts failed: %w", m.maxAttempts, lastErr)
}

// waitBackoff sleeps for baseDelay doubled per attempt, capped at maxDelay.
func (m *ConnectionManager) waitBackoff(ctx context.Context, attempt int) error {
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.maxDelay {
			delay = m.maxDelay
			break
		}
	}

	fired := make(chan struct{})
	t := m.clock.AfterFunc(delay, func() { close(fired) })
	defer t.Stop()

	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// handleConnect installs a freshly dialed connection and runs the rejoin
// protocol. The forfeit timer is cleared before anything else is scheduled
// so a fast reconnect can never race a spurious forfeit.
func (m *ConnectionManager) handleConnect(conn *websocket.Conn) {
	m.mu.Lock()
	m.stopForfeitTimerLocked()
	m.conn = conn
	m.socketID = uuid.NewString()
	m.connected = true
	m.forfeitSent = false
	pending := m.pendingForfeit
	m.pendingForfeit = nil
	m.mu.Unlock()

	log.Printf("Socket connected: %s", m.socketID)
	if m.onChange != nil {
		m.onChange(true)
	}

	go m.readLoop(conn)

	if pending != nil {
		// The grace period elapsed while the transport was down; deliver
		// the forfeit now instead of rejoining a game we already lost.
		if err := m.Emit(EventForfeitGame, pending); err != nil {
			log.Printf("Failed to deliver deferred forfeit for game %s: %v", pending.GameID, err)
		}
		m.clearGame()
		return
	}

	m.rejoinIfNeeded()
}

// rejoinIfNeeded tells the server which prior identity to reattach this
// connection to, recovering purely from durable state plus the cached
// socket id.
func (m *ConnectionManager) rejoinIfNeeded() {
	game, err := m.store.CurrentGame()
	if err != nil {
		if !errors.Is(err, ErrNoCurrentGame) {
			log.Printf("Failed to read current game record: %v", err)
		}
		return
	}

	m.mu.Lock()
	m.gameID = game.GameID
	previous := m.lastKnownSocketID
	if previous == "" {
		previous = m.socketID
	}
	m.mu.Unlock()

	payload := RejoinGamePayload{
		GameID:           game.GameID,
		UserID:           m.userID,
		PreviousSocketID: previous,
	}
	if err := m.Emit(EventRejoinGame, payload); err != nil {
		log.Printf("Failed to emit rejoinGame for game %s: %v", game.GameID, err)
	} else {
		log.Printf("Rejoining game %s as %s (previous socket %s)", game.GameID, m.userID, previous)
	}
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Socket read error: %v", err)
			}
			m.handleDisconnect(conn)
			return
		}
		m.dispatch(msg)
	}
}

func (m *ConnectionManager) dispatch(msg Message) {
	if msg.Event == EventAck {
		m.mu.Lock()
		ch, ok := m.acks[msg.AckID]
		if ok {
			delete(m.acks, msg.AckID)
		}
		m.mu.Unlock()
		if ok {
			ch <- msg.Payload
		}
		return
	}

	m.mu.Lock()
	handler := m.handlers[msg.Event]
	m.mu.Unlock()

	switch {
	case handler != nil:
		handler(msg.Payload)
	case msg.Event == EventPlayerReconnected || msg.Event == EventPlayerDisconnected:
		// Presence info is logged only.
		log.Printf("Presence event %s: %s", msg.Event, string(msg.Payload))
	default:
		log.Printf("Unhandled socket event: %s", msg.Event)
	}
}

// handleDisconnect caches the socket identity for the next rejoin and arms
// the forfeit grace timer.
func (m *ConnectionManager) handleDisconnect(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		// A stale read loop from a connection we already replaced.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	m.lastKnownSocketID = m.socketID
	lastID := m.lastKnownSocketID
	closed := m.closed
	online := m.online
	if !closed && !m.forfeitSent && m.forfeitTimer == nil {
		m.forfeitTimer = m.clock.AfterFunc(m.grace, m.forfeitAfterGrace)
	}
	m.mu.Unlock()

	if closed {
		return
	}
	log.Printf("Socket disconnected (last socket id %s)", lastID)
	if m.onChange != nil {
		m.onChange(false)
	}
	if online {
		m.scheduleReconnect()
	}
}

// forfeitAfterGrace fires when a disconnect has outlived the grace period.
// If a game is still active it emits exactly one forfeitGame for this
// disconnect episode, deferring delivery until the transport returns.
func (m *ConnectionManager) forfeitAfterGrace() {
	m.mu.Lock()
	if m.connected || m.closed || m.forfeitSent {
		m.mu.Unlock()
		return
	}
	m.forfeitTimer = nil
	m.mu.Unlock()

	game, err := m.store.CurrentGame()
	if err != nil {
		return
	}

	m.mu.Lock()
	if m.connected || m.forfeitSent {
		m.mu.Unlock()
		return
	}
	m.forfeitSent = true
	m.pendingForfeit = &ForfeitGamePayload{GameID: game.GameID, UserID: m.userID}
	m.mu.Unlock()

	log.Printf("Grace period elapsed while disconnected, forfeiting game %s", game.GameID)
	if m.onForfeit != nil {
		m.onForfeit(game.GameID)
	}
}

func (m *ConnectionManager) stopForfeitTimerLocked() {
	if m.forfeitTimer != nil {
		m.forfeitTimer.Stop()
		m.forfeitTimer = nil
	}
}

func (m *ConnectionManager) scheduleReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.reconnecting = false
			m.mu.Unlock()
		}()
		if err := m.connectWithRetry(context.Background()); err != nil {
			log.Printf("Reconnect gave up: %v", err)
		}
	}()
}

// SetOnline records network-level connectivity as reported by the embedding
// application, tracked separately from socket-level connectivity. Coming back
// online re-runs the rejoin logic defensively, since the socket may have
// reconnected before the application noticed.
func (m *ConnectionManager) SetOnline(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	connected := m.connected
	m.mu.Unlock()

	if was == online {
		return
	}
	log.Printf("Network status changed: online=%v", online)
	if !online {
		return
	}
	if connected {
		m.rejoinIfNeeded()
	} else {
		m.scheduleReconnect()
	}
}

// Subscribe registers the handler for an event. Registration is idempotent:
// subscribing the same event again replaces the previous handler, it never
// duplicates delivery.
func (m *ConnectionManager) Subscribe(event string, handler EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = handler
}

// Unsubscribe removes the handler for an event.
func (m *ConnectionManager) Unsubscribe(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, event)
}

// Emit sends a fire-and-forget event.
func (m *ConnectionManager) Emit(event string, payload any) error {
	return m.send(Message{Event: event}, payload)
}

// EmitWithAck sends an event and waits for the server's acknowledgement or
// the context deadline, whichever comes first.
func (m *ConnectionManager) EmitWithAck(ctx context.Context, event string, payload any) error {
	ackID := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	m.mu.Lock()
	m.acks[ackID] = ch
	m.mu.Unlock()

	cleanup := func() {
		m.mu.Lock()
		delete(m.acks, ackID)
		m.mu.Unlock()
	}

	if err := m.send(Message{Event: event, AckID: ackID}, payload); err != nil {
		cleanup()
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		cleanup()
		return ErrAckTimeout
	case <-m.done:
		cleanup()
		return ErrClosed
	}
}

func (m *ConnectionManager) send(msg Message, payload any) error {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("client: marshal %s payload: %w", msg.Event, err)
		}
		msg.Payload = data
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// JoinGame records the game as the persisted current game and announces the
// join. The in-memory and persisted copies are written together.
func (m *ConnectionManager) JoinGame(game CurrentGame) error {
	m.mu.Lock()
	m.gameID = game.GameID
	err := m.store.SetCurrentGame(game)
	socketID := m.socketID
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("client: persist current game: %w", err)
	}

	return m.Emit(EventJoinGame, JoinGamePayload{
		GameID:   game.GameID,
		UserID:   m.userID,
		SocketID: socketID,
	})
}

// LeaveGame clears the in-memory game id and the persisted record together,
// then tells the server.
func (m *ConnectionManager) LeaveGame() error {
	m.mu.Lock()
	gameID := m.gameID
	m.gameID = ""
	err := m.store.ClearCurrentGame()
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("client: clear current game: %w", err)
	}
	if gameID == "" {
		return nil
	}

	return m.Emit(EventLeaveGame, LeaveGamePayload{GameID: gameID, UserID: m.userID})
}

func (m *ConnectionManager) clearGame() {
	m.mu.Lock()
	m.gameID = ""
	if err := m.store.ClearCurrentGame(); err != nil {
		log.Printf("Failed to clear current game record: %v", err)
	}
	m.mu.Unlock()
}

func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *ConnectionManager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *ConnectionManager) UserID() string {
	return m.userID
}

func (m *ConnectionManager) SocketID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.socketID
}

func (m *ConnectionManager) GameID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameID
}

// Close tears down the connection, caching the last socket identity first so
// a later manager can still reference it through the store-backed rejoin.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopForfeitTimerLocked()
	if m.socketID != "" {
		m.lastKnownSocketID = m.socketID
	}
	conn := m.conn
	m.conn = nil
	m.connected = false
	close(m.done)
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
