/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import "strings"

// ChaosEvent is an entry from the chaos table. Type is a tag: minigame tags
// open a minigame, ReverseTurn flips the turn direction, anything else is
// shown as a plain instruction.
type ChaosEvent struct {
	Type        string `yaml:"type" json:"type"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

const ReverseTurn = "REVERSE_TURN"

const minigamePrefix = "MINIGAME_"

type Minigame string

const (
	MinigameRace      Minigame = "race"
	MinigameBomb      Minigame = "bomb"
	MinigameSniper    Minigame = "sniper"
	MinigameRoulette  Minigame = "roulette"
	MinigameBattle    Minigame = "battle"
	MinigameCards     Minigame = "cards"
	MinigameSequence  Minigame = "sequence"
	MinigameTraffic   Minigame = "traffic"
	MinigameChampagne Minigame = "champagne"
)

var minigames = []Minigame{
	MinigameRace,
	MinigameBomb,
	MinigameSniper,
	MinigameRoulette,
	MinigameBattle,
	MinigameCards,
	MinigameSequence,
	MinigameTraffic,
	MinigameChampagne,
}

// Minigames lists the kinds the client knows how to render.
func Minigames() []Minigame {
	out := make([]Minigame, len(minigames))
	copy(out, minigames)
	return out
}

// MinigameFor maps a chaos tag such as MINIGAME_RACE to its minigame.
func MinigameFor(tag string) (Minigame, bool) {
	name, ok := strings.CutPrefix(tag, minigamePrefix)
	if !ok {
		return "", false
	}

	kind := Minigame(strings.ToLower(name))
	for _, m := range minigames {
		if m == kind {
			return kind, true
		}
	}

	return "", false
}

// Overlay is whatever is covering the challenge card. A nil Overlay means
// none; only ChaosOverlay and MinigameOverlay implement it.
type Overlay interface {
	overlay()
}

type ChaosOverlay struct {
	Event ChaosEvent
}

type MinigameOverlay struct {
	Kind Minigame
}

func (ChaosOverlay) overlay()    {}
func (MinigameOverlay) overlay() {}
