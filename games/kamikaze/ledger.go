/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/Seednode/kamikaze/storage"
)

// Persisted keys, shared with the browser client's naming.
const (
	KeyRoster     = "kamikazeGamePlayers"
	KeySettings   = "kamikazeGameplaySettings"
	KeyLedger     = "kamikazeGlobalUsedChallenges"
	KeyCategories = "kamikazeCategories"
)

// Ledger remembers which challenges have already been shown, across sessions.
type Ledger interface {
	Load(ctx context.Context) map[int]struct{}
	MarkUsed(ctx context.Context, id int) error
	Clear(ctx context.Context) error
}

// StoreLedger keeps the ledger as a JSON array of IDs in a Store. Every
// mutation is written through before returning.
type StoreLedger struct {
	store storage.Store
}

func NewStoreLedger(s storage.Store) *StoreLedger {
	return &StoreLedger{store: s}
}

func (l *StoreLedger) ids(ctx context.Context) ([]int, error) {
	data, err := l.store.Get(ctx, KeyLedger)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []int
	if json.Unmarshal(data, &ids) != nil {
		return nil, nil
	}

	return ids, nil
}

// Load returns the used IDs. Missing or malformed data reads as empty.
func (l *StoreLedger) Load(ctx context.Context) map[int]struct{} {
	ids, _ := l.ids(ctx)

	out := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}

	return out
}

func (l *StoreLedger) MarkUsed(ctx context.Context, id int) error {
	ids, err := l.ids(ctx)
	if err != nil {
		return err
	}

	if slices.Contains(ids, id) {
		return nil
	}

	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}

	return l.store.Set(ctx, KeyLedger, data)
}

func (l *StoreLedger) Clear(ctx context.Context) error {
	return l.store.Remove(ctx, KeyLedger)
}

type MemoryLedger struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

func NewMemoryLedger(ids ...int) *MemoryLedger {
	l := &MemoryLedger{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

func (l *MemoryLedger) Load(context.Context) map[int]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[int]struct{}, len(l.ids))
	for id := range l.ids {
		out[id] = struct{}{}
	}

	return out
}

func (l *MemoryLedger) MarkUsed(_ context.Context, id int) error {
	l.mu.Lock()
	l.ids[id] = struct{}{}
	l.mu.Unlock()

	return nil
}

func (l *MemoryLedger) Clear(context.Context) error {
	l.mu.Lock()
	clear(l.ids)
	l.mu.Unlock()

	return nil
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.ids)
}
