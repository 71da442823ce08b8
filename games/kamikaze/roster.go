/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Seednode/kamikaze/storage"
	"github.com/google/uuid"
)

const (
	MinPlayers    = 2
	minNameLength = 2
	maxNameLength = 20
)

var (
	ErrInvalidName   = errors.New("invalid player name")
	ErrDuplicateName = errors.New("player name already in use")
	ErrUnknownPlayer = errors.New("no such player")
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewPlayer trims and validates name against the existing roster.
func NewPlayer(name string, existing []Player) (Player, error) {
	name = strings.TrimSpace(name)

	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return Player{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case n < minNameLength:
		return Player{}, fmt.Errorf("%w: name must be at least %d characters", ErrInvalidName, minNameLength)
	case n > maxNameLength:
		return Player{}, fmt.Errorf("%w: name cannot be longer than %d characters", ErrInvalidName, maxNameLength)
	}

	for _, p := range existing {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return Player{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	return Player{
		ID:   uuid.NewString(),
		Name: name,
	}, nil
}

// ValidateRoster is the check run before a session may start.
func ValidateRoster(players []Player) error {
	if len(players) < MinPlayers {
		return fmt.Errorf("%w: need at least %d players", ErrNotEnoughPlayers, MinPlayers)
	}

	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return fmt.Errorf("%w: every player needs a name", ErrInvalidName)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// LoadRoster returns the saved players, or nil when none are stored or
// the stored value is unreadable.
func LoadRoster(ctx context.Context, s storage.Store) []Player {
	data, err := s.Get(ctx, KeyRoster)
	if err != nil {
		return nil
	}

	var players []Player
	if json.Unmarshal(data, &players) != nil {
		return nil
	}

	return players
}

// SaveRoster stores players; an empty roster removes the entry.
func SaveRoster(ctx context.Context, s storage.Store, players []Player) error {
	if len(players) == 0 {
		return ClearRoster(ctx, s)
	}

	data, err := json.Marshal(players)
	if err != nil {
		return err
	}

	return s.Set(ctx, KeyRoster, data)
}

func ClearRoster(ctx context.Context, s storage.Store) error {
	return s.Remove(ctx, KeyRoster)
}

// AddPlayer validates name and appends it to the saved roster.
func AddPlayer(ctx context.Context, s storage.Store, name string) (Player, error) {
	players := LoadRoster(ctx, s)

	p, err := NewPlayer(name, players)
	if err != nil {
		return Player{}, err
	}

	if err := SaveRoster(ctx, s, append(players, p)); err != nil {
		return Player{}, err
	}

	return p, nil
}

func RemovePlayer(ctx context.Context, s storage.Store, id string) error {
	players := LoadRoster(ctx, s)

	kept := players[:0]
	for _, p := range players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}

	if len(kept) == len(players) {
		return ErrUnknownPlayer
	}

	return SaveRoster(ctx, s, kept)
}
