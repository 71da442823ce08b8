/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import (
	"context"
	"encoding/json"

	"github.com/Seednode/kamikaze/storage"
)

type GameLength string

const (
	LengthQuick    GameLength = "quick"
	LengthStandard GameLength = "standard"
	LengthExtended GameLength = "extended"
)

var gameLengths = map[GameLength]int{
	LengthQuick:    15,
	LengthStandard: 30,
	LengthExtended: 45,
}

// Challenges returns the session length, falling back to standard.
func (g GameLength) Challenges() int {
	if n, ok := gameLengths[g]; ok {
		return n
	}
	return gameLengths[LengthStandard]
}

type Settings struct {
	GameLength      GameLength `json:"gameLength"`
	TurnOrder       TurnOrder  `json:"turnOrder"`
	EnableSounds    bool       `json:"enableSounds"`
	EnableVibration bool       `json:"enableVibration"`
}

func DefaultSettings() Settings {
	return Settings{
		GameLength:      LengthStandard,
		TurnOrder:       OrderRandom,
		EnableSounds:    true,
		EnableVibration: true,
	}
}

// normalize replaces unknown enum values with their defaults.
func (s Settings) normalize() Settings {
	d := DefaultSettings()
	if _, ok := gameLengths[s.GameLength]; !ok {
		s.GameLength = d.GameLength
	}
	if !s.TurnOrder.valid() {
		s.TurnOrder = d.TurnOrder
	}
	return s
}

// LoadSettings never fails: absent, unreadable or malformed data yields
// the defaults, and missing fields keep theirs.
func LoadSettings(ctx context.Context, s storage.Store) Settings {
	out := DefaultSettings()

	data, err := s.Get(ctx, KeySettings)
	if err != nil {
		return out
	}

	if json.Unmarshal(data, &out) != nil {
		return DefaultSettings()
	}

	return out.normalize()
}

func SaveSettings(ctx context.Context, s storage.Store, settings Settings) error {
	data, err := json.Marshal(settings.normalize())
	if err != nil {
		return err
	}
	return s.Set(ctx, KeySettings, data)
}

type Categories struct {
	Regular     bool `json:"regular"`
	Epic        bool `json:"epic"`
	Multiplayer bool `json:"multiplayer"`
}

func AllCategories() Categories {
	return Categories{Regular: true, Epic: true, Multiplayer: true}
}

func (c Categories) Enabled(cat Category) bool {
	switch cat {
	case Regular:
		return c.Regular
	case Epic:
		return c.Epic
	case Multiplayer:
		return c.Multiplayer
	}
	return false
}

func LoadCategories(ctx context.Context, s storage.Store) Categories {
	out := AllCategories()

	data, err := s.Get(ctx, KeyCategories)
	if err != nil {
		return out
	}

	if json.Unmarshal(data, &out) != nil {
		return AllCategories()
	}

	return out
}

func SaveCategories(ctx context.Context, s storage.Store, c Categories) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyCategories, data)
}

// ResetSettings drops both the gameplay settings and category toggles.
func ResetSettings(ctx context.Context, s storage.Store) error {
	if err := s.Remove(ctx, KeySettings); err != nil {
		return err
	}
	return s.Remove(ctx, KeyCategories)
}
