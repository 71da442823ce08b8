/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package kamikaze runs one table's game: the challenge deck, whose turn it
// is, the chaos events dealt every few challenges, and the minigames they
// open.
package kamikaze

import (
	"context"
	"errors"
	"time"

	"github.com/Seednode/kamikaze/storage"
)

const (
	// ChaosCadence deals a chaos event on every challenge number divisible by it.
	ChaosCadence = 7

	// RecycleMargin is how many spare challenges a filtered deck must hold
	// beyond the session length before the ledger gets recycled.
	RecycleMargin = 5
)

var ErrNotEnoughPlayers = errors.New("not enough players")

type Options struct {
	// Players as handed over by setup. Fewer than two falls back to the
	// saved roster.
	Players []Player

	// Store holds the roster, settings and category toggles.
	Store storage.Store

	// Ledger defaults to a StoreLedger over Store.
	Ledger Ledger

	// Content defaults to DefaultContent.
	Content Content

	Rand Source
	Now  func() time.Time
	Logf func(format string, args ...any)
}

// CurrentChallenge is the challenge on the table with its players resolved.
type CurrentChallenge struct {
	Challenge
	Number   int      `json:"number"`
	Assigned []string `json:"assignedPlayers,omitempty"`
}

// Session is not safe for concurrent use; the owner serializes actions.
type Session struct {
	store      storage.Store
	ledger     Ledger
	content    Content
	categories Categories
	rand       Source
	now        func() time.Time
	logf       func(format string, args ...any)

	players   []Player
	order     TurnOrder
	target    int
	deck      Catalog
	cursor    int
	current   int
	direction int
	overlay   Overlay
	shown     *CurrentChallenge

	completed  bool
	endedEarly bool
	terminated bool
	recycled   bool
	startedAt  time.Time
	elapsed    int
}

// New resolves the roster, settings and deck and deals the first challenge.
// It returns ErrNotEnoughPlayers when no roster of at least two players is
// available; the caller should send the players back to setup.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	if opts.Ledger == nil {
		opts.Ledger = NewStoreLedger(opts.Store)
	}
	if len(opts.Content.Catalog) == 0 {
		content, err := DefaultContent()
		if err != nil {
			return nil, err
		}
		opts.Content = content
	}
	if opts.Rand == nil {
		opts.Rand = DefaultSource
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	players := opts.Players
	if len(players) < MinPlayers {
		players = LoadRoster(ctx, opts.Store)
	}
	if len(players) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	settings := LoadSettings(ctx, opts.Store)

	s := &Session{
		store:      opts.Store,
		ledger:     opts.Ledger,
		content:    opts.Content,
		categories: LoadCategories(ctx, opts.Store),
		rand:       opts.Rand,
		now:        opts.Now,
		logf:       opts.Logf,
		players:    append([]Player(nil), players...),
		order:      settings.TurnOrder,
		target:     settings.GameLength.Challenges(),
	}

	pool := s.content.Catalog.Filter(s.categories)
	available := pool.Without(s.ledger.Load(ctx))

	if len(available) < s.target+RecycleMargin {
		available = pool
		s.recycled = true
		if err := s.ledger.Clear(ctx); err != nil {
			s.logf("clearing used challenges: %v", err)
		}
		s.logf("recycled deck: %d challenges", len(available))
	} else {
		s.logf("filtered deck: %d unused challenges", len(available))
	}

	s.deal(ctx, available)

	return s, nil
}

// deal shuffles pool into the deck and resets all counters.
func (s *Session) deal(ctx context.Context, pool Catalog) {
	s.deck = Shuffle(s.rand, pool)
	s.cursor = 1
	s.current = 0
	s.direction = 1
	s.overlay = nil
	s.completed = false
	s.endedEarly = false
	s.elapsed = 0
	s.startedAt = s.now()

	s.recordShown(ctx)
}

// resolve derives the challenge at the cursor, picking players for
// Multiplayer challenges.
func (s *Session) resolve() *CurrentChallenge {
	if len(s.deck) == 0 {
		return nil
	}

	c := &CurrentChallenge{
		Challenge: s.deck[(s.cursor-1)%len(s.deck)],
		Number:    s.cursor,
	}

	if c.Category == Multiplayer {
		picked := s.players
		if !c.Players.All {
			picked = Shuffle(s.rand, s.players)[:c.Players.pick(len(s.players))]
		}
		for _, p := range picked {
			c.Assigned = append(c.Assigned, p.Name)
		}
	}

	return c
}

// recordShown runs once per cursor change: it fixes the current challenge
// and burns its ID in the ledger before the action returns.
func (s *Session) recordShown(ctx context.Context) {
	s.shown = s.resolve()
	if s.shown == nil {
		return
	}

	if err := s.ledger.MarkUsed(ctx, s.shown.ID); err != nil {
		s.logf("marking challenge %d used: %v", s.shown.ID, err)
	}
}

func (s *Session) nextTurn() {
	s.current = NextPlayerIndex(s.rand, s.current, s.order, len(s.players), s.direction)
}

func (s *Session) finish() {
	s.completed = true
	s.overlay = nil
	s.elapsed = int(s.now().Sub(s.startedAt) / time.Second)
}

func (s *Session) active() bool {
	return !s.completed && !s.terminated
}

// Advance moves to the next challenge, or completes the session after the
// last one. It reports whether anything changed; it does nothing while an
// overlay is open or once the session is over.
func (s *Session) Advance(ctx context.Context) bool {
	if !s.active() || s.overlay != nil {
		return false
	}

	if s.cursor >= s.target {
		s.finish()
		return true
	}

	s.cursor++

	if s.cursor%ChaosCadence == 0 && len(s.content.Chaos) > 0 {
		event := s.content.Chaos[s.rand.IntN(len(s.content.Chaos))]
		if kind, ok := MinigameFor(event.Type); ok {
			s.overlay = MinigameOverlay{Kind: kind}
		} else {
			s.overlay = ChaosOverlay{Event: event}
		}
	} else {
		s.nextTurn()
	}

	s.recordShown(ctx)

	return true
}

// CloseMinigame dismisses the open minigame of the given kind and passes
// the turn. Any other kind, or no open minigame, is a no-op.
func (s *Session) CloseMinigame(kind Minigame) bool {
	if !s.active() {
		return false
	}

	open, ok := s.overlay.(MinigameOverlay)
	if !ok || open.Kind != kind {
		return false
	}

	s.overlay = nil
	s.nextTurn()

	return true
}

// CloseChaos dismisses the open chaos event, reversing the turn direction
// first when the event calls for it, then passes the turn.
func (s *Session) CloseChaos() bool {
	if !s.active() {
		return false
	}

	open, ok := s.overlay.(ChaosOverlay)
	if !ok {
		return false
	}

	if open.Event.Type == ReverseTurn {
		s.direction = -s.direction
	}

	s.overlay = nil
	s.nextTurn()

	return true
}

// End stops the session early.
func (s *Session) End() bool {
	if !s.active() {
		return false
	}

	s.finish()
	s.endedEarly = true

	return true
}

// Restart deals a fresh shuffle of the whole catalog to the same players.
// The ledger is not consulted, but category toggles still apply. Only a
// completed session can be restarted.
func (s *Session) Restart(ctx context.Context) bool {
	if !s.completed || s.terminated {
		return false
	}

	s.recycled = false
	s.deal(ctx, s.content.Catalog.Filter(s.categories))

	return true
}

// NewGame forgets the saved roster and retires the session; players go
// back to setup.
func (s *Session) NewGame(ctx context.Context) error {
	s.terminated = true
	s.overlay = nil

	return ClearRoster(ctx, s.store)
}

// Current returns the challenge on the table, or nil for an empty deck.
// Repeated calls return the same player assignment until the cursor moves.
func (s *Session) Current() *CurrentChallenge {
	return s.shown
}

func (s *Session) CurrentPlayer() Player {
	return s.players[s.current]
}

func (s *Session) CurrentPlayerIndex() int {
	return s.current
}

func (s *Session) Players() []Player {
	return append([]Player(nil), s.players...)
}

func (s *Session) Deck() Catalog {
	return append(Catalog(nil), s.deck...)
}

func (s *Session) Cursor() int {
	return s.cursor
}

func (s *Session) Target() int {
	return s.target
}

func (s *Session) Direction() int {
	return s.direction
}

func (s *Session) TurnOrder() TurnOrder {
	return s.order
}

func (s *Session) IsLast() bool {
	return s.cursor >= s.target
}

func (s *Session) Overlay() Overlay {
	return s.overlay
}

func (s *Session) Completed() bool {
	return s.completed
}

func (s *Session) Terminated() bool {
	return s.terminated
}

// Recycled reports whether the ledger was cleared when this deck was dealt.
func (s *Session) Recycled() bool {
	return s.recycled
}

// ElapsedSeconds is the recorded play time, zero until the session completes.
func (s *Session) ElapsedSeconds() int {
	return s.elapsed
}

// ChallengesCompleted counts the challenges played through. Ending early
// never counts the challenge still on the table.
func (s *Session) ChallengesCompleted() int {
	if !s.endedEarly && s.cursor >= s.target {
		return s.target
	}
	return s.cursor - 1
}
