package server

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"bingo-server/internal/bingo"
)

// trialInterval is how often a demo number is privately "drawn".
const trialInterval = 4 * time.Second

// TrialRunner drives per-session demo auto-play. Each session gets its own
// timer loop walking a shuffled copy of the player's own card values. A
// loop stops on value exhaustion, a demo win or disconnect, and every loop
// at once the moment the first real number is called.
type TrialRunner struct {
	game     *bingo.Game
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	active map[string]*trialSession // connectionID -> running loop
}

type trialSession struct {
	cancel chan struct{}
	once   sync.Once
}

func (ts *trialSession) stop() {
	ts.once.Do(func() { close(ts.cancel) })
}

func NewTrialRunner(game *bingo.Game, clock clockwork.Clock) *TrialRunner {
	return &TrialRunner{
		game:     game,
		clock:    clock,
		interval: trialInterval,
		active:   make(map[string]*trialSession),
	}
}

// Start launches the auto-play loop for one session. An already-running
// loop for the same connection is cancelled first. The send callback must
// deliver only to that session.
func (tr *TrialRunner) Start(connectionID, phone string, send func(ServerMessage)) {
	values := tr.game.TrialValues(phone)
	if len(values) == 0 {
		return
	}

	sess := &trialSession{cancel: make(chan struct{})}

	tr.mu.Lock()
	if old, exists := tr.active[connectionID]; exists {
		old.stop()
	}
	tr.active[connectionID] = sess
	tr.mu.Unlock()

	log.Info().
		Str("connection", connectionID).
		Str("phone", phone).
		Int("values", len(values)).
		Msg("trial auto-play started")

	go tr.run(connectionID, phone, values, sess, send)
}

func (tr *TrialRunner) run(connectionID, phone string, values []int, sess *trialSession, send func(ServerMessage)) {
	defer tr.remove(connectionID, sess)

	for _, number := range values {
		timer := tr.clock.NewTimer(tr.interval)
		select {
		case <-timer.Chan():
		case <-sess.cancel:
			stopAndDrainTimer(timer)
			return
		}

		// The real game may have begun between ticks; demo play must
		// never outlive the first real draw.
		if tr.game.Started() {
			return
		}

		line, won := tr.game.MarkTrial(phone, number)
		send(ServerMessage{Type: "trial_number", Payload: TrialNumberPayload{Number: number}})
		if won {
			send(ServerMessage{Type: "trial_winner", Payload: TrialWinnerPayload{Phone: phone, Line: line}})
			log.Info().Str("phone", phone).Msg("trial auto-play won")
			return
		}
	}
}

// Stop cancels the loop for one session, if any.
func (tr *TrialRunner) Stop(connectionID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if sess, exists := tr.active[connectionID]; exists {
		sess.stop()
		delete(tr.active, connectionID)
	}
}

// CancelAll tears down every outstanding loop; called right before the
// first real number is broadcast.
func (tr *TrialRunner) CancelAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for id, sess := range tr.active {
		sess.stop()
		delete(tr.active, id)
	}
}

// Running reports whether a session currently has a loop.
func (tr *TrialRunner) Running(connectionID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, exists := tr.active[connectionID]
	return exists
}

func (tr *TrialRunner) remove(connectionID string, sess *trialSession) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if current, exists := tr.active[connectionID]; exists && current == sess {
		delete(tr.active, connectionID)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so an already
// fired timer cannot leak a goroutine.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
