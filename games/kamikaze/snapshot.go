/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

const (
	StateActive    = "active"
	StateCompleted = "completed"
	StateEnded     = "ended"
)

type OverlayView struct {
	Kind     string      `json:"kind"`
	Event    *ChaosEvent `json:"event,omitempty"`
	Minigame Minigame    `json:"minigame,omitempty"`
}

// Snapshot is the read-only view a client renders from.
type Snapshot struct {
	State               string            `json:"state"`
	Players             []Player          `json:"players"`
	CurrentPlayer       Player            `json:"currentPlayer"`
	CurrentPlayerIndex  int               `json:"currentPlayerIndex"`
	Challenge           *CurrentChallenge `json:"challenge,omitempty"`
	Number              int               `json:"number"`
	Target              int               `json:"target"`
	IsLast              bool              `json:"isLast"`
	TurnOrder           TurnOrder         `json:"turnOrder"`
	Direction           int               `json:"direction"`
	Overlay             *OverlayView      `json:"overlay,omitempty"`
	ChallengesCompleted int               `json:"challengesCompleted"`
	ElapsedSeconds      int               `json:"elapsedSeconds"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:               StateActive,
		Players:             s.Players(),
		CurrentPlayer:       s.CurrentPlayer(),
		CurrentPlayerIndex:  s.current,
		Challenge:           s.shown,
		Number:              s.cursor,
		Target:              s.target,
		IsLast:              s.IsLast(),
		TurnOrder:           s.order,
		Direction:           s.direction,
		ChallengesCompleted: s.ChallengesCompleted(),
		ElapsedSeconds:      s.elapsed,
	}

	switch {
	case s.terminated:
		snap.State = StateEnded
	case s.completed:
		snap.State = StateCompleted
	}

	switch o := s.overlay.(type) {
	case ChaosOverlay:
		event := o.Event
		snap.Overlay = &OverlayView{Kind: "chaos", Event: &event}
	case MinigameOverlay:
		snap.Overlay = &OverlayView{Kind: "minigame", Minigame: o.Kind}
	}

	return snap
}
