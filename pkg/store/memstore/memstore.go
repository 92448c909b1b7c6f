// Package memstore keeps runpacks in process memory. Packs are stored in
// their encoded form so readers always get independent copies.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/store"
)

type Store struct {
	mu       sync.RWMutex
	packs    map[ident.RunID][]byte
	byScen   map[ident.ScenarioID][]ident.RunID
}

func New() *Store {
	return &Store{
		packs:  make(map[ident.RunID][]byte),
		byScen: make(map[ident.ScenarioID][]ident.RunID),
	}
}

func (s *Store) PutRunpack(_ context.Context, p *runpack.Pack) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packs[p.RunID]; ok {
		return store.ErrDuplicate
	}
	s.packs[p.RunID] = raw
	s.byScen[p.ScenarioID] = append(s.byScen[p.ScenarioID], p.RunID)
	return nil
}

func (s *Store) GetRunpack(_ context.Context, run ident.RunID) (*runpack.Pack, error) {
	s.mu.RLock()
	raw, ok := s.packs[run]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return runpack.Decode(raw)
}

func (s *Store) ListRunpacks(_ context.Context, scenario ident.ScenarioID) ([]ident.RunID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ident.RunID, len(s.byScen[scenario]))
	copy(out, s.byScen[scenario])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ store.Store = (*Store)(nil)
