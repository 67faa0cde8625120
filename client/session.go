package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// SessionState is the challenge page's game state. Terminal states are
// absorbing: once entered, no further transitions happen and all timers stop.
type SessionState int

const (
	StateIdle SessionState = iota
	StateIntro
	StatePlaying
	StateWon
	StateLost
	StateTied
	StateAbandoned
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIntro:
		return "intro"
	case StatePlaying:
		return "playing"
	case StateWon:
		return "won"
	case StateLost:
		return "lost"
	case StateTied:
		return "tied"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

func (s SessionState) Terminal() bool {
	return s == StateWon || s == StateLost || s == StateTied || s == StateAbandoned
}

// GameStatus carries the mutually exclusive terminal flags. At most one of
// IsWinner, IsOpponentWon and IsTie is ever true.
type GameStatus struct {
	IsWinner      bool
	IsOpponentWon bool
	IsTie         bool
	WinnerName    string
	Margin        string
}

// Emitter is the slice of the ConnectionManager the session needs to report
// outcomes. Nil is allowed for offline bot practice.
type Emitter interface {
	Emit(event string, payload any) error
	EmitWithAck(ctx context.Context, event string, payload any) error
	SocketID() string
}

const (
	botDelayMinSeconds = 5 * 60
	botDelayMaxSeconds = 15 * 60
	resultAckTimeout   = 5 * time.Second
)

// SessionConfig is the challenge payload that creates a session.
type SessionConfig struct {
	GameID        string
	Players       []string
	LocalPlayer   string
	Question      *Question
	ChallengeType string
	CustomMinutes int
	IsBotMatch    bool

	Emitter Emitter
	Clock   Clock
	Rand    RandomSource

	// OnStateChange is invoked after every state transition, outside the
	// session lock.
	OnStateChange func(state SessionState, status GameStatus)
}

// Session is the game-session state machine:
//
//	Intro -> Playing -> {Won, Lost, Tied, Abandoned}
//
// It owns the countdown timer and, for bot matches, the bot-decision timer.
// Whichever reaches a terminal condition first wins; the other is canceled
// immediately so it can never fire a contradictory transition.
type Session struct {
	gameID      string
	players     []string
	localPlayer string
	question    *Question
	isBot       bool
	clock       Clock
	rand        RandomSource
	emitter     Emitter
	onChange    func(SessionState, GameStatus)

	mu           sync.Mutex
	state        SessionState
	remaining    int // seconds
	timerRunning bool
	status       GameStatus
	countdown    Timer
	botTimer     Timer
	closed       bool
}

// NewSession validates the challenge payload and enters the intro state.
// A payload with fewer than two named players or no question keeps the
// machine idle by failing construction.
func NewSession(cfg SessionConfig) (*Session, error) {
	named := 0
	for _, p := range cfg.Players {
		if p != "" {
			named++
		}
	}
	if named < 2 {
		return nil, errors.New("client: challenge needs at least two named players")
	}
	if cfg.Question == nil {
		return nil, errors.New("client: challenge has no question")
	}

	s := &Session{
		gameID:      cfg.GameID,
		players:     cfg.Players,
		localPlayer: cfg.LocalPlayer,
		question:    cfg.Question,
		isBot:       cfg.IsBotMatch,
		clock:       cfg.Clock,
		rand:        cfg.Rand,
		emitter:     cfg.Emitter,
		onChange:    cfg.OnStateChange,
		state:       StateIntro,
		remaining:   int(ChallengeDuration(cfg.ChallengeType, cfg.CustomMinutes) / time.Second),
	}
	if s.localPlayer == "" {
		s.localPlayer = cfg.Players[0]
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	if s.rand == nil {
		s.rand = NewRandomSource()
	}
	return s, nil
}

// IntroDone is the intro-animation completion callback: it starts the
// countdown and, for bot matches, schedules the bot's decision.
func (s *Session) IntroDone() {
	s.mu.Lock()
	if s.state != StateIntro || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StatePlaying
	s.timerRunning = true
	s.countdown = s.clock.AfterFunc(time.Second, s.tick)
	if s.isBot {
		s.scheduleBotDecisionLocked()
	}
	state, status := s.state, s.status
	s.mu.Unlock()

	s.notify(state, status)
}

// scheduleBotDecisionLocked draws a uniformly random decision delay in
// [5, 15] minutes and a random winner, and arms a one-shot timer.
func (s *Session) scheduleBotDecisionLocked() {
	delay := botDelayMinSeconds + s.rand.Intn(botDelayMaxSeconds-botDelayMinSeconds+1)
	botWins := s.rand.Bool()
	log.Printf("Bot match %s: decision in %ds, botWins=%v", s.gameID, delay, botWins)
	s.botTimer = s.clock.AfterFunc(time.Duration(delay)*time.Second, func() {
		s.resolveBotDecision(botWins)
	})
}

func (s *Session) resolveBotDecision(botWins bool) {
	margin := s.marginMessage()
	if botWins {
		s.finish(StateLost, GameStatus{
			IsOpponentWon: true,
			WinnerName:    s.opponentName(),
			Margin:        margin,
		})
	} else {
		s.win(margin)
	}
}

// tick advances the countdown one second at a time. Reaching zero with no
// winner declared is a tie for both players.
func (s *Session) tick() {
	s.mu.Lock()
	if !s.timerRunning || s.closed {
		s.mu.Unlock()
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.countdown = s.clock.AfterFunc(time.Second, s.tick)
		s.mu.Unlock()
		return
	}
	s.remaining = 0
	s.mu.Unlock()

	if s.emitter != nil {
		if err := s.emitter.Emit(EventGameTimeUp, GameTimeUpPayload{GameID: s.gameID}); err != nil {
			log.Printf("Failed to emit gameTimeUp for game %s: %v", s.gameID, err)
		}
	}
	s.finish(StateTied, GameStatus{IsTie: true})
}

// HandleGradingResult is the grading client's callback. A correct submission
// means the local player solved the problem first.
func (s *Session) HandleGradingResult(correct bool) {
	if !correct {
		return
	}
	s.win(s.marginMessage())
}

// HandleGameEnded applies an authoritative outcome from the server.
func (s *Session) HandleGameEnded(p GameEndedPayload) {
	switch {
	case p.IsWinner:
		s.finish(StateWon, GameStatus{IsWinner: true, WinnerName: p.WinnerName, Margin: p.Margin})
	case p.IsOpponentWon:
		s.finish(StateLost, GameStatus{IsOpponentWon: true, WinnerName: p.WinnerName, Margin: p.Margin})
	default:
		s.finish(StateTied, GameStatus{IsTie: true})
	}
}

// HandleGameForfeited marks the match abandoned by the opponent.
func (s *Session) HandleGameForfeited() {
	s.finish(StateAbandoned, GameStatus{IsWinner: true, WinnerName: s.localPlayer, Margin: "opponent abandoned the match"})
}

// BindConnection subscribes the session to the game-outcome events of a
// connection. Subscription is idempotent, so rebinding after a reconnect
// never duplicates handling.
func (s *Session) BindConnection(m *ConnectionManager) {
	m.Subscribe(EventGameEnded, func(payload json.RawMessage) {
		var p GameEndedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Printf("Bad gameEnded payload: %v", err)
			return
		}
		s.HandleGameEnded(p)
	})
	m.Subscribe(EventGameForfeited, func(json.RawMessage) {
		s.HandleGameForfeited()
	})
}

// win resolves a locally determined victory and reports it to the matchmaking
// backend. The report expects an acknowledgement; failure to get one is
// logged, the local transition has already happened.
func (s *Session) win(margin string) {
	if !s.finish(StateWon, GameStatus{IsWinner: true, WinnerName: s.localPlayer, Margin: margin}) {
		return
	}
	if s.emitter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultAckTimeout)
		defer cancel()
		payload := GameResultPayload{
			GameID:         s.gameID,
			WinnerSocketID: s.emitter.SocketID(),
			WinnerName:     s.localPlayer,
		}
		if err := s.emitter.EmitWithAck(ctx, EventGameResult, payload); err != nil {
			log.Printf("gameResult for %s not acknowledged: %v", s.gameID, err)
		}
	}()
}

// finish enters a terminal state. It reports whether this call performed the
// transition; terminal states are absorbing so only the first caller does.
func (s *Session) finish(state SessionState, status GameStatus) bool {
	s.mu.Lock()
	if s.state.Terminal() || s.closed {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.status = status
	s.timerRunning = false
	s.stopTimersLocked()
	s.mu.Unlock()

	log.Printf("Game %s finished: %s (winner=%q)", s.gameID, state, status.WinnerName)
	s.notify(state, status)
	return true
}

func (s *Session) stopTimersLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	if s.botTimer != nil {
		s.botTimer.Stop()
		s.botTimer = nil
	}
}

func (s *Session) notify(state SessionState, status GameStatus) {
	if s.onChange != nil {
		s.onChange(state, status)
	}
}

func (s *Session) marginMessage() string {
	s.mu.Lock()
	remaining := s.remaining
	s.mu.Unlock()
	return fmt.Sprintf("with %d:%02d left on the clock", remaining/60, remaining%60)
}

func (s *Session) opponentName() string {
	for _, p := range s.players {
		if p != "" && p != s.localPlayer {
			return p
		}
	}
	return "opponent"
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) TimeRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) TimerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerRunning
}

// Close cancels all timers so nothing fires into a session the player has
// navigated away from.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.timerRunning = false
	s.stopTimersLocked()
}
