// Package bingo implements the authoritative state for one round of a
// 75-ball bingo game: card generation, the player roster, the shared draw
// history, win detection and the private trial (demo) marks. All state
// lives behind a single mutex so draws, attaches and trial ticks never
// interleave.
package bingo

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Player owns the cards bound to one phone number for the current round.
// The record outlives its sessions so a reconnect restores the same cards.
type Player struct {
	Phone    string
	Trial    bool
	Cards    []*PlayerCard
	sessions map[string]bool
}

// Winner is a confirmed (or trial) winning player plus every session
// currently attached to it, so the gateway can notify all their tabs.
type Winner struct {
	Phone    string   `json:"phone"`
	Trial    bool     `json:"isTrial"`
	Sessions []string `json:"-"`
	Line     Line     `json:"line"`
}

// DrawResult reports one real draw: the number, the confirmed winner list
// (non-empty only on the terminal draw) and any demo players whose cards
// happened to complete on this number.
type DrawResult struct {
	Number       int
	Winners      []Winner
	TrialWinners []Winner
}

// PlayerInfo is a roster entry for admin consoles.
type PlayerInfo struct {
	Phone  string `json:"phone"`
	Trial  bool   `json:"isTrial"`
	Online bool   `json:"online"`
}

// Approach flags a player within one or two numbers of a completed line.
type Approach struct {
	Phone   string `json:"phone"`
	Missing int    `json:"missing"`
	Trial   bool   `json:"isTrial"`
}

// Snapshot is the shared state a freshly attached client needs.
type Snapshot struct {
	Called       []int    `json:"calledNumbers"`
	Active       bool     `json:"gameActive"`
	Winners      []Winner `json:"winners"`
	TrialEnabled bool     `json:"trialEnabled"`
}

// Game is the single authority for one round. Every mutating or reading
// method takes the same lock; callers never hold it across I/O.
type Game struct {
	mu           sync.Mutex
	rng          *rand.Rand
	called       []int
	available    []int
	active       bool
	winners      []Winner
	players      map[string]*Player
	sessionPhone map[string]string
	trialEnabled bool
	botSeq       int
}

// Option configures a Game at construction.
type Option func(*Game)

// WithSeed fixes the random source, for deterministic tests.
func WithSeed(seed int64) Option {
	return func(g *Game) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// NewGame returns a game in the active state with a full undrawn pool.
func NewGame(opts ...Option) *Game {
	g := &Game{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		active:       true,
		players:      make(map[string]*Player),
		sessionPhone: make(map[string]string),
		trialEnabled: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.available = fullPool()
	return g
}

func fullPool() []int {
	pool := make([]int, MaxNumber)
	for i := range pool {
		pool[i] = i + 1
	}
	return pool
}

// Ensure attaches a session to the player identified by phone, creating
// the player on first contact and topping up cards until the player holds
// requiredCards of them. Existing cards are never regenerated or removed;
// new cards are synced against the numbers already called.
func (g *Game) Ensure(sessionID, phone string, trial bool, requiredCards int) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureLocked(sessionID, phone, trial, requiredCards)
}

func (g *Game) ensureLocked(sessionID, phone string, trial bool, requiredCards int) *Player {
	p, ok := g.players[phone]
	if !ok {
		p = &Player{
			Phone:    phone,
			Trial:    trial,
			sessions: make(map[string]bool),
		}
		g.players[phone] = p
	}

	p.sessions[sessionID] = true
	g.sessionPhone[sessionID] = phone

	for len(p.Cards) < requiredCards {
		p.Cards = append(p.Cards, NewPlayerCard(g.rng, g.called))
		log.Info().
			Str("phone", phone).
			Int("cards", len(p.Cards)).
			Msg("generated card for player")
	}

	return p
}

// Detach unbinds a session from its player. The player record is kept so
// a reconnect gets the same cards back. Unknown sessions are a no-op.
func (g *Game) Detach(sessionID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	phone, ok := g.sessionPhone[sessionID]
	if !ok {
		return "", false
	}
	delete(g.sessionPhone, sessionID)
	if p, ok := g.players[phone]; ok {
		delete(p.sessions, sessionID)
	}
	return phone, true
}

// Players returns the roster, online iff at least one session is attached.
func (g *Game) Players() []PlayerInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	roster := make([]PlayerInfo, 0, len(g.players))
	for _, p := range g.players {
		roster = append(roster, PlayerInfo{
			Phone:  p.Phone,
			Trial:  p.Trial,
			Online: len(p.sessions) > 0,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Phone < roster[j].Phone })
	return roster
}

// CardsFor returns the card grids owned by a phone, nil if unknown.
func (g *Game) CardsFor(phone string) []Card {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[phone]
	if !ok {
		return nil
	}
	cards := make([]Card, len(p.Cards))
	for i, pc := range p.Cards {
		cards[i] = pc.Card
	}
	return cards
}

// CallNumber draws one number from the pool, marks every card and runs win
// detection. Returns nil without touching state when the round has ended,
// the pool is empty or a winner is already confirmed. A non-trial winner
// ends the round; trial wins are reported but change nothing.
func (g *Game) CallNumber() *DrawResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active || len(g.available) == 0 || len(g.winners) > 0 {
		return nil
	}

	idx := g.rng.Intn(len(g.available))
	number := g.available[idx]
	g.available = append(g.available[:idx], g.available[idx+1:]...)
	g.called = append(g.called, number)

	result := &DrawResult{Number: number}

	for _, p := range g.players {
		for _, pc := range p.Cards {
			_, alreadyWon := pc.CheckWin()
			pc.MarkNumber(number)
			line, won := pc.CheckWin()
			if !won || alreadyWon {
				continue
			}
			w := Winner{
				Phone:    p.Phone,
				Trial:    p.Trial,
				Sessions: sessionList(p),
				Line:     line,
			}
			if p.Trial {
				result.TrialWinners = append(result.TrialWinners, w)
				continue
			}
			g.active = false
			if !containsWinner(g.winners, p.Phone) {
				g.winners = append(g.winners, w)
				log.Info().
					Str("phone", p.Phone).
					Str("line", fmt.Sprintf("%s %d", line.Kind, line.Index)).
					Int("number", number).
					Msg("bingo confirmed")
			}
		}
	}

	result.Winners = append([]Winner(nil), g.winners...)
	return result
}

func sessionList(p *Player) []string {
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func containsWinner(winners []Winner, phone string) bool {
	for _, w := range winners {
		if w.Phone == phone {
			return true
		}
	}
	return false
}

// Reset restores the full pool and the active state. With clearPlayers the
// whole roster and every session binding is discarded; otherwise players
// keep their cards and only the marks are wiped back to free-cell-only.
func (g *Game) Reset(clearPlayers bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.called = nil
	g.available = fullPool()
	g.active = true
	g.winners = nil

	if clearPlayers {
		g.players = make(map[string]*Player)
		g.sessionPhone = make(map[string]string)
		g.botSeq = 0
		log.Info().Msg("game reset, roster cleared")
		return
	}
	for _, p := range g.players {
		for _, pc := range p.Cards {
			pc.ClearMarks()
		}
	}
	log.Info().Int("players", len(g.players)).Msg("game reset, roster kept")
}

// ResyncTrialMarks wipes every trial player's marks and replays the real
// call history onto them. Run once, right before the first real draw, to
// erase leftovers from private demo play.
func (g *Game) ResyncTrialMarks() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.players {
		if !p.Trial {
			continue
		}
		for _, pc := range p.Cards {
			pc.Replay(g.called)
		}
	}
}

// Snapshot returns the shared state for initial client sync.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Snapshot{
		Called:       append([]int(nil), g.called...),
		Active:       g.active,
		Winners:      append([]Winner(nil), g.winners...),
		TrialEnabled: g.trialEnabled,
	}
}

// Started reports whether at least one real number has been called.
func (g *Game) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.called) > 0
}

// Exhausted reports a pool emptied without any confirmed winner.
func (g *Game) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.available) == 0 && len(g.winners) == 0
}

// SetTrialEnabled gates whether new trial attachments are accepted.
func (g *Game) SetTrialEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trialEnabled = enabled
	log.Info().Bool("enabled", enabled).Msg("trial mode toggled")
}

// TrialEnabled reports the current trial gate.
func (g *Game) TrialEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trialEnabled
}

// AddBots injects synthetic trial players for load testing.
func (g *Game) AddBots(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < count; i++ {
		g.botSeq++
		phone := fmt.Sprintf("BOT-%d", g.botSeq)
		session := fmt.Sprintf("bot-session-%d", g.botSeq)
		g.ensureLocked(session, phone, true, 1)
	}
	log.Info().Int("count", count).Msg("bots added")
}
