/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Seednode/kamikaze/storage"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func testPlayers(names ...string) []Player {
	out := make([]Player, len(names))
	for i, n := range names {
		out[i] = Player{ID: n, Name: n}
	}
	return out
}

func testCatalog(n int) Catalog {
	return BuildCatalog(rawList("challenge", n), nil, nil)
}

var plainChaos = []ChaosEvent{{Type: "SOCIAL", Title: "Social!"}}

type harness struct {
	store  *storage.Memory
	ledger *MemoryLedger
	clock  *fakeClock
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()

	h := &harness{
		store:  storage.NewMemory(),
		ledger: NewMemoryLedger(),
		clock:  &fakeClock{t: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)},
	}
	if err := SaveSettings(context.Background(), h.store, settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	return h
}

func (h *harness) start(t *testing.T, players []Player, content Content) *Session {
	t.Helper()

	s, err := New(context.Background(), Options{
		Players: players,
		Store:   h.store,
		Ledger:  h.ledger,
		Content: content,
		Rand:    newRand(11),
		Now:     h.clock.now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return s
}

func clockwise(length GameLength) Settings {
	return Settings{GameLength: length, TurnOrder: OrderClockwise}
}

// closeOverlay dismisses whatever is open, returning false if nothing was.
func closeOverlay(s *Session) bool {
	switch o := s.Overlay().(type) {
	case ChaosOverlay:
		return s.CloseChaos()
	case MinigameOverlay:
		return s.CloseMinigame(o.Kind)
	}
	return false
}

func TestNewInitialState(t *testing.T) {
	h := newHarness(t, clockwise(LengthStandard))
	s := h.start(t, testPlayers("A", "B", "C"), Content{Catalog: testCatalog(100), Chaos: plainChaos})

	if s.Cursor() != 1 || s.CurrentPlayerIndex() != 0 || s.Direction() != 1 {
		t.Errorf("unexpected counters: cursor %d, player %d, direction %d", s.Cursor(), s.CurrentPlayerIndex(), s.Direction())
	}
	if s.Completed() || s.Overlay() != nil {
		t.Error("new session should be active with no overlay")
	}
	if s.Target() != 30 {
		t.Errorf("expected target 30, got %d", s.Target())
	}
	if len(s.Deck()) != 100 {
		t.Errorf("expected 100 cards, got %d", len(s.Deck()))
	}
	if s.CurrentPlayer().Name != "A" {
		t.Errorf("expected A first, got %s", s.CurrentPlayer().Name)
	}
}

func TestNewNotEnoughPlayers(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	_, err := New(context.Background(), Options{
		Players: testPlayers("Solo"),
		Store:   h.store,
		Content: Content{Catalog: testCatalog(50)},
	})
	if !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestNewFallsBackToSavedRoster(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	if err := SaveRoster(context.Background(), h.store, testPlayers("X", "Y", "Z")); err != nil {
		t.Fatal(err)
	}

	s := h.start(t, testPlayers("Solo"), Content{Catalog: testCatalog(50)})

	if got := s.Players(); len(got) != 3 || got[0].Name != "X" {
		t.Errorf("expected saved roster, got %+v", got)
	}
}

func TestNewDefaultContent(t *testing.T) {
	s, err := New(context.Background(), Options{Players: testPlayers("A", "B")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	content, _ := DefaultContent()
	if len(s.Deck()) != len(content.Catalog) {
		t.Errorf("expected the embedded catalog, got %d cards", len(s.Deck()))
	}
}

func TestCadence(t *testing.T) {
	h := newHarness(t, clockwise(LengthStandard))
	s := h.start(t, testPlayers("A", "B", "C"), Content{Catalog: testCatalog(100), Chaos: plainChaos})

	var triggered []int
	for !s.Completed() {
		if !s.Advance(context.Background()) {
			t.Fatalf("advance refused at cursor %d", s.Cursor())
		}
		if s.Overlay() != nil {
			triggered = append(triggered, s.Cursor())
			if !closeOverlay(s) {
				t.Fatalf("could not close overlay at cursor %d", s.Cursor())
			}
		}
	}

	if want := []int{7, 14, 21, 28}; !slices.Equal(triggered, want) {
		t.Errorf("chaos at %v, want %v", triggered, want)
	}
	if s.Cursor() != 30 {
		t.Errorf("expected to finish at cursor 30, got %d", s.Cursor())
	}
}

func TestAdvanceWithoutChaosTable(t *testing.T) {
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(40)})

	for range 6 {
		s.Advance(context.Background())
	}

	if s.Cursor() != 7 || s.Overlay() != nil {
		t.Errorf("expected cursor 7 with no overlay, got %d %v", s.Cursor(), s.Overlay())
	}
	if s.CurrentPlayerIndex() != 0 {
		t.Errorf("expected the turn to keep moving, got player %d", s.CurrentPlayerIndex())
	}
}

func TestEndToEndClockwise(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B", "C"), Content{
		Catalog: testCatalog(60),
		Chaos:   []ChaosEvent{{Type: "MINIGAME_RACE", Title: "Race"}},
	})

	if s.Target() != 15 {
		t.Fatalf("expected target 15, got %d", s.Target())
	}

	for _, want := range []int{1, 2, 0, 1, 2} {
		s.Advance(ctx)
		if got := s.CurrentPlayerIndex(); got != want {
			t.Fatalf("cursor %d: expected player %d, got %d", s.Cursor(), want, got)
		}
	}

	s.Advance(ctx)
	if s.Cursor() != 7 {
		t.Fatalf("expected cursor 7, got %d", s.Cursor())
	}
	if got, ok := s.Overlay().(MinigameOverlay); !ok || got.Kind != MinigameRace {
		t.Fatalf("expected race minigame, got %#v", s.Overlay())
	}
	if s.CurrentPlayerIndex() != 2 {
		t.Errorf("turn should wait for the minigame, got player %d", s.CurrentPlayerIndex())
	}

	if s.Advance(ctx) {
		t.Error("advance should be refused while a minigame is open")
	}
	if s.CloseChaos() {
		t.Error("closing chaos should not close a minigame")
	}
	if s.CloseMinigame(MinigameBomb) {
		t.Error("closing the wrong minigame should be a no-op")
	}

	if !s.CloseMinigame(MinigameRace) {
		t.Fatal("CloseMinigame(race) refused")
	}
	if s.Overlay() != nil {
		t.Error("overlay still open")
	}
	if s.CurrentPlayerIndex() != 0 {
		t.Errorf("expected player 0 after the minigame, got %d", s.CurrentPlayerIndex())
	}
	if s.CloseMinigame(MinigameRace) {
		t.Error("second close should be a no-op")
	}
}

func TestReverseTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthStandard))
	s := h.start(t, testPlayers("A", "B", "C", "D"), Content{
		Catalog: testCatalog(60),
		Chaos:   []ChaosEvent{{Type: ReverseTurn, Title: "Reverse!"}},
	})

	for range 6 {
		s.Advance(ctx)
	}

	open, ok := s.Overlay().(ChaosOverlay)
	if !ok || open.Event.Type != ReverseTurn {
		t.Fatalf("expected reverse event, got %#v", s.Overlay())
	}
	if s.CurrentPlayerIndex() != 1 {
		t.Fatalf("expected player 1 before the event closes, got %d", s.CurrentPlayerIndex())
	}

	if !s.CloseChaos() {
		t.Fatal("CloseChaos refused")
	}
	if s.Direction() != -1 {
		t.Errorf("expected direction -1, got %d", s.Direction())
	}
	if s.CurrentPlayerIndex() != 0 {
		t.Errorf("expected player 0 after reversing, got %d", s.CurrentPlayerIndex())
	}

	s.Advance(ctx)
	if s.CurrentPlayerIndex() != 3 {
		t.Errorf("expected play to run backwards to player 3, got %d", s.CurrentPlayerIndex())
	}
}

func TestPlainChaosKeepsDirection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Settings{GameLength: LengthQuick, TurnOrder: OrderCounterclockwise})
	s := h.start(t, testPlayers("A", "B", "C"), Content{Catalog: testCatalog(60), Chaos: plainChaos})

	for range 6 {
		s.Advance(ctx)
	}
	before := s.CurrentPlayerIndex()
	s.CloseChaos()

	if s.Direction() != 1 {
		t.Errorf("direction changed: %d", s.Direction())
	}
	if want := (before + 2) % 3; s.CurrentPlayerIndex() != want {
		t.Errorf("expected counterclockwise step to %d, got %d", want, s.CurrentPlayerIndex())
	}
}

func TestCloseWithNothingOpen(t *testing.T) {
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(40), Chaos: plainChaos})

	if s.CloseChaos() || s.CloseMinigame(MinigameSniper) {
		t.Error("closing with no overlay should be a no-op")
	}
	if s.CurrentPlayerIndex() != 0 {
		t.Error("no-op close moved the turn")
	}
}

func TestRecyclingTrigger(t *testing.T) {
	const size = 100

	tests := []struct {
		name      string
		used      int
		recycled  bool
		deckSize  int
		ledgerLen int
	}{
		{"30 left recycles", size - 30, true, size, 1},
		{"40 left keeps filter", size - 40, false, 40, size - 40 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, clockwise(LengthStandard))
			for id := 1; id <= tt.used; id++ {
				_ = h.ledger.MarkUsed(context.Background(), id)
			}

			s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(size)})

			if s.Recycled() != tt.recycled {
				t.Errorf("recycled = %v, want %v", s.Recycled(), tt.recycled)
			}
			if got := len(s.Deck()); got != tt.deckSize {
				t.Errorf("deck size %d, want %d", got, tt.deckSize)
			}
			if got := h.ledger.Len(); got != tt.ledgerLen {
				t.Errorf("ledger size %d, want %d", got, tt.ledgerLen)
			}

			if !tt.recycled {
				for _, c := range s.Deck() {
					if c.ID <= tt.used {
						t.Fatalf("used challenge %d dealt again", c.ID)
					}
				}
			}
		})
	}
}

func TestLedgerBurnsOnDisplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(60), Chaos: plainChaos})

	deck := s.Deck()
	used := h.ledger.Load(ctx)
	if _, ok := used[deck[0].ID]; !ok || len(used) != 1 {
		t.Fatalf("first card not burned on deal: %v", used)
	}

	for i := 1; i < 7; i++ {
		s.Advance(ctx)
		if _, ok := h.ledger.Load(ctx)[deck[i].ID]; !ok {
			t.Fatalf("card %d not burned when shown", i+1)
		}
	}

	if s.Overlay() == nil {
		t.Fatal("expected chaos at card 7")
	}
	if h.ledger.Len() != 7 {
		t.Errorf("expected 7 burned, got %d", h.ledger.Len())
	}
}

func TestLedgerPersistedThroughStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	s, err := New(ctx, Options{
		Players: testPlayers("A", "B"),
		Store:   store,
		Content: Content{Catalog: testCatalog(60)},
		Rand:    newRand(1),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Advance(ctx)

	raw, err := store.Get(ctx, KeyLedger)
	if err != nil {
		t.Fatalf("ledger not written: %v", err)
	}

	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		t.Fatalf("ledger not a JSON array: %v", err)
	}
	if len(ids) != 2 || ids[0] != s.Deck()[0].ID || ids[1] != s.Deck()[1].ID {
		t.Errorf("unexpected ledger %v", ids)
	}
}

func TestDeckWrapsAround(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(10)})

	if !s.Recycled() || len(s.Deck()) != 10 {
		t.Fatalf("expected a recycled deck of 10, got %d", len(s.Deck()))
	}

	for s.Cursor() < 11 {
		s.Advance(ctx)
	}

	if s.Current().ID != s.Deck()[0].ID {
		t.Errorf("card 11 should wrap to the first card, got %d want %d", s.Current().ID, s.Deck()[0].ID)
	}
}

func TestMultiplayerAssignment(t *testing.T) {
	players := testPlayers("A", "B", "C", "D")

	tests := []struct {
		name string
		spec PlayerSpec
		want int
	}{
		{"pair", PlayerSpec{Count: 2}, 2},
		{"three", PlayerSpec{Count: 3}, 3},
		{"everyone", AllPlayers, 4},
		{"unusable", PlayerSpec{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, clockwise(LengthQuick))
			raw := make([]RawChallenge, 30)
			for i := range raw {
				raw[i] = RawChallenge{Text: "group", Players: tt.spec}
			}
			s := h.start(t, players, Content{Catalog: BuildCatalog(nil, nil, raw)})

			c := s.Current()
			if len(c.Assigned) != tt.want {
				t.Fatalf("assigned %v, want %d names", c.Assigned, tt.want)
			}
			seen := map[string]bool{}
			for _, name := range c.Assigned {
				if seen[name] {
					t.Errorf("%s assigned twice", name)
				}
				seen[name] = true
			}

			for range 5 {
				if again := s.Current(); !slices.Equal(again.Assigned, c.Assigned) {
					t.Fatalf("assignment changed between reads: %v vs %v", c.Assigned, again.Assigned)
				}
			}

			if tt.spec.All && !slices.Equal(c.Assigned, []string{"A", "B", "C", "D"}) {
				t.Errorf("everyone should be assigned in seat order, got %v", c.Assigned)
			}
		})
	}
}

func TestRegularChallengeHasNoAssignment(t *testing.T) {
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(30)})

	if got := s.Current().Assigned; got != nil {
		t.Errorf("regular challenge assigned %v", got)
	}
}

func TestCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B", "C"), Content{Catalog: testCatalog(60), Chaos: plainChaos})

	for !s.IsLast() {
		s.Advance(ctx)
		closeOverlay(s)
	}

	h.clock.t = h.clock.t.Add(95 * time.Second)

	if !s.Advance(ctx) || !s.Completed() {
		t.Fatal("advance past the last challenge should complete the session")
	}
	if s.ElapsedSeconds() != 95 {
		t.Errorf("expected 95 seconds, got %d", s.ElapsedSeconds())
	}
	if s.ChallengesCompleted() != 15 {
		t.Errorf("expected 15 challenges completed, got %d", s.ChallengesCompleted())
	}

	cursor, player := s.Cursor(), s.CurrentPlayerIndex()
	for range 5 {
		if s.Advance(ctx) {
			t.Fatal("advance accepted after completion")
		}
	}
	if s.Cursor() != cursor || s.CurrentPlayerIndex() != player {
		t.Errorf("completed session changed: cursor %d->%d, player %d->%d", cursor, s.Cursor(), player, s.CurrentPlayerIndex())
	}
	if s.End() {
		t.Error("End accepted on a completed session")
	}
}

func TestEndEarly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthStandard))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(60), Chaos: plainChaos})

	for range 6 {
		s.Advance(ctx)
	}
	if s.Overlay() == nil {
		t.Fatal("expected an open overlay")
	}

	h.clock.t = h.clock.t.Add(10 * time.Minute)

	if !s.End() {
		t.Fatal("End refused")
	}
	if !s.Completed() || s.Overlay() != nil {
		t.Error("End should complete and clear the overlay")
	}
	if s.ElapsedSeconds() != 600 {
		t.Errorf("expected 600 seconds, got %d", s.ElapsedSeconds())
	}
	if s.ChallengesCompleted() != 6 {
		t.Errorf("expected 6 completed, got %d", s.ChallengesCompleted())
	}
}

func TestEndOnLastChallenge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: testCatalog(60)})

	for range 14 {
		s.Advance(ctx)
	}
	if !s.IsLast() {
		t.Fatalf("expected to sit on the last challenge, cursor %d", s.Cursor())
	}

	if !s.End() {
		t.Fatal("End refused")
	}
	if got := s.ChallengesCompleted(); got != 14 {
		t.Errorf("expected 14 completed after ending on the last challenge, got %d", got)
	}

	if !s.Restart(ctx) {
		t.Fatal("Restart refused")
	}
	for range 15 {
		s.Advance(ctx)
	}
	if !s.Completed() {
		t.Fatal("expected natural completion")
	}
	if got := s.ChallengesCompleted(); got != 15 {
		t.Errorf("expected 15 completed after finishing, got %d", got)
	}
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthStandard))
	for id := 1; id <= 60; id++ {
		_ = h.ledger.MarkUsed(ctx, id)
	}

	players := testPlayers("A", "B", "C")
	s := h.start(t, players, Content{Catalog: testCatalog(100), Chaos: plainChaos})
	if len(s.Deck()) != 40 {
		t.Fatalf("expected filtered deck of 40, got %d", len(s.Deck()))
	}

	if s.Restart(ctx) {
		t.Fatal("restart accepted on an active session")
	}

	for range 9 {
		s.Advance(ctx)
		closeOverlay(s)
	}
	s.End()

	if !s.Restart(ctx) {
		t.Fatal("Restart refused")
	}

	if s.Cursor() != 1 || s.CurrentPlayerIndex() != 0 || s.Direction() != 1 {
		t.Errorf("counters not reset: cursor %d, player %d, direction %d", s.Cursor(), s.CurrentPlayerIndex(), s.Direction())
	}
	if s.Completed() || s.ElapsedSeconds() != 0 {
		t.Error("restart should reopen the session")
	}
	if !slices.Equal(s.Players(), players) {
		t.Errorf("roster changed: %+v", s.Players())
	}
	if len(s.Deck()) != 100 {
		t.Errorf("expected the full catalog, got %d cards", len(s.Deck()))
	}

	ids := make([]int, 0, 100)
	for _, c := range s.Deck() {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("restarted deck is not a permutation of the catalog: %v", ids)
		}
	}
}

func TestCategoryToggles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	if err := SaveCategories(ctx, h.store, Categories{Epic: true}); err != nil {
		t.Fatal(err)
	}

	catalog := BuildCatalog(rawList("r", 30), rawList("e", 25), rawList("m", 5))
	s := h.start(t, testPlayers("A", "B"), Content{Catalog: catalog})

	if len(s.Deck()) != 25 {
		t.Fatalf("expected 25 epic cards, got %d", len(s.Deck()))
	}
	for _, c := range s.Deck() {
		if c.Category != Epic {
			t.Errorf("disabled category dealt: %+v", c)
		}
	}
}

func TestNewGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	_ = SaveRoster(ctx, h.store, testPlayers("A", "B"))

	s := h.start(t, nil, Content{Catalog: testCatalog(40)})

	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if LoadRoster(ctx, h.store) != nil {
		t.Error("saved roster not cleared")
	}
	if !s.Terminated() || s.Advance(ctx) || s.End() || s.Restart(ctx) {
		t.Error("retired session still accepts actions")
	}
	if s.Snapshot().State != StateEnded {
		t.Errorf("expected ended state, got %s", s.Snapshot().State)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clockwise(LengthQuick))
	s := h.start(t, testPlayers("A", "B"), Content{
		Catalog: testCatalog(40),
		Chaos:   []ChaosEvent{{Type: "MINIGAME_TRAFFIC", Title: "Lights"}},
	})

	snap := s.Snapshot()
	if snap.State != StateActive || snap.Number != 1 || snap.Target != 15 || snap.Overlay != nil {
		t.Errorf("unexpected initial snapshot: %+v", snap)
	}
	if snap.Challenge == nil || snap.Challenge.ID != s.Deck()[0].ID {
		t.Errorf("snapshot challenge mismatch: %+v", snap.Challenge)
	}

	for range 6 {
		s.Advance(ctx)
	}

	snap = s.Snapshot()
	if snap.Overlay == nil || snap.Overlay.Kind != "minigame" || snap.Overlay.Minigame != MinigameTraffic {
		t.Errorf("expected traffic minigame overlay, got %+v", snap.Overlay)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	if decoded["state"] != "active" || decoded["number"] != float64(7) {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestMinigameFor(t *testing.T) {
	for _, m := range Minigames() {
		tag := "MINIGAME_" + string(m)
		if got, ok := MinigameFor(tag); !ok || got != m {
			t.Errorf("MinigameFor(%q) = %q, %v", tag, got, ok)
		}
	}

	for _, tag := range []string{"MINIGAME_POKER", "REVERSE_TURN", "race", ""} {
		if _, ok := MinigameFor(tag); ok {
			t.Errorf("MinigameFor(%q) matched", tag)
		}
	}
}
