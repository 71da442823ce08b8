/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import (
	_ "embed"
	"fmt"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	Regular     Category = "Regular"
	Epic        Category = "Epic"
	Multiplayer Category = "Multiplayer"
)

// PlayerSpec says how many players a Multiplayer challenge pulls in.
// Zero means the value was absent or unusable.
type PlayerSpec struct {
	All   bool
	Count int
}

var AllPlayers = PlayerSpec{All: true}

// UnmarshalYAML accepts "all", an integer, or anything else (treated as unset).
func (p *PlayerSpec) UnmarshalYAML(value *yaml.Node) error {
	*p = PlayerSpec{}
	if value.Kind != yaml.ScalarNode {
		return nil
	}
	if value.Value == "all" {
		p.All = true
		return nil
	}
	if n, err := strconv.Atoi(value.Value); err == nil && n > 0 {
		p.Count = n
	}
	return nil
}

// pick resolves how many names to assign out of total players.
func (p PlayerSpec) pick(total int) int {
	if p.All {
		return total
	}
	n := p.Count
	if n <= 0 {
		n = 2
	}
	return min(n, total)
}

type RawChallenge struct {
	Text    string     `yaml:"text"`
	Players PlayerSpec `yaml:"players,omitempty"`
}

type Challenge struct {
	ID       int        `json:"id"`
	Text     string     `json:"text"`
	Category Category   `json:"category"`
	Players  PlayerSpec `json:"-"`
}

type Catalog []Challenge

// BuildCatalog numbers challenges from 1 in Regular, Epic, Multiplayer order.
// The counter runs across categories, so the same lists always yield the same IDs.
func BuildCatalog(regular, epic, multiplayer []RawChallenge) Catalog {
	out := make(Catalog, 0, len(regular)+len(epic)+len(multiplayer))
	id := 1

	add := func(list []RawChallenge, cat Category) {
		for _, r := range list {
			c := Challenge{
				ID:       id,
				Text:     r.Text,
				Category: cat,
			}
			if cat == Multiplayer {
				c.Players = r.Players
			}
			out = append(out, c)
			id++
		}
	}

	add(regular, Regular)
	add(epic, Epic)
	add(multiplayer, Multiplayer)

	return out
}

// Without returns the challenges whose IDs are not in used.
func (c Catalog) Without(used map[int]struct{}) Catalog {
	out := make(Catalog, 0, len(c))
	for _, ch := range c {
		if _, ok := used[ch.ID]; ok {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Filter keeps only the enabled categories. With nothing enabled the
// catalog is returned whole.
func (c Catalog) Filter(cats Categories) Catalog {
	if !cats.Regular && !cats.Epic && !cats.Multiplayer {
		return c
	}
	out := make(Catalog, 0, len(c))
	for _, ch := range c {
		if cats.Enabled(ch.Category) {
			out = append(out, ch)
		}
	}
	return out
}

type contentFile struct {
	Challenges struct {
		Regular     []RawChallenge `yaml:"regular"`
		Epic        []RawChallenge `yaml:"epic"`
		Multiplayer []RawChallenge `yaml:"multiplayer"`
	} `yaml:"challenges"`
	Chaos []ChaosEvent `yaml:"chaos"`
}

// ParseContent reads a content file holding the three challenge lists and
// the chaos event table.
func ParseContent(data []byte) (Catalog, []ChaosEvent, error) {
	var f contentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse content: %w", err)
	}

	catalog := BuildCatalog(f.Challenges.Regular, f.Challenges.Epic, f.Challenges.Multiplayer)
	if len(catalog) == 0 {
		return nil, nil, fmt.Errorf("parse content: no challenges defined")
	}

	return catalog, f.Chaos, nil
}

//go:embed content.yaml
var defaultContent []byte

var loadDefault = sync.OnceValues(func() (Content, error) {
	catalog, chaos, err := ParseContent(defaultContent)
	return Content{Catalog: catalog, Chaos: chaos}, err
})

// Content is everything a session draws from.
type Content struct {
	Catalog Catalog
	Chaos   []ChaosEvent
}

// DefaultContent returns the embedded challenge and chaos tables.
func DefaultContent() (Content, error) {
	return loadDefault()
}
