// Package memory provides an in-memory store.Repository. It is the
// default backend for local runs and the fixture store for tests.
package memory

import (
	"context"
	"sync"

	"paycal/internal/core"
	"paycal/internal/store"
)

type Store struct {
	mu        sync.Mutex
	events    map[string]map[string]*core.DayEvents // scope -> date key -> events
	rules     map[string][]core.RecurringRule       // scope -> rules
	snapshots map[string]store.BalanceSnapshot      // scope + date key -> snapshot
}

func New() *Store {
	return &Store{
		events:    make(map[string]map[string]*core.DayEvents),
		rules:     make(map[string][]core.RecurringRule),
		snapshots: make(map[string]store.BalanceSnapshot),
	}
}

// LoadEvents returns a deep copy of the scope's ad-hoc events.
func (s *Store) LoadEvents(_ context.Context, scope string) (map[string]*core.DayEvents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*core.DayEvents, len(s.events[scope]))
	for key, ev := range s.events[scope] {
		out[key] = ev.Clone()
	}
	return out, nil
}

// SaveEvents replaces the scope's ad-hoc events wholesale.
func (s *Store) SaveEvents(_ context.Context, scope string, events map[string]*core.DayEvents) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]*core.DayEvents, len(events))
	for key, ev := range events {
		copied[key] = ev.Clone()
	}
	s.events[scope] = copied
	return nil
}

// LoadRules returns a copy of the scope's recurring rules.
func (s *Store) LoadRules(_ context.Context, scope string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := make([]core.RecurringRule, len(s.rules[scope]))
	for i, r := range s.rules[scope] {
		r.Exceptions = append([]string(nil), r.Exceptions...)
		rules[i] = r
	}
	return rules, nil
}

// SaveRules replaces the scope's recurring rules wholesale.
func (s *Store) SaveRules(_ context.Context, scope string, rules []core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]core.RecurringRule, len(rules))
	for i, r := range rules {
		r.Exceptions = append([]string(nil), r.Exceptions...)
		copied[i] = r
	}
	s.rules[scope] = copied
	return nil
}

// Scopes lists scopes that hold events or rules.
func (s *Store) Scopes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for scope := range s.events {
		if _, ok := seen[scope]; !ok {
			seen[scope] = struct{}{}
			out = append(out, scope)
		}
	}
	for scope := range s.rules {
		if _, ok := seen[scope]; !ok {
			seen[scope] = struct{}{}
			out = append(out, scope)
		}
	}
	return out, nil
}

// UpsertSnapshot stores a balance snapshot, replacing any existing one
// for the same scope and date.
func (s *Store) UpsertSnapshot(_ context.Context, snap store.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Scope+"|"+snap.Date.Key()] = snap
	return nil
}

// GetSnapshot returns the snapshot for a scope and date, or
// store.ErrSnapshotNotFound.
func (s *Store) GetSnapshot(_ context.Context, scope string, date core.Date) (store.BalanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[scope+"|"+date.Key()]
	if !ok {
		return store.BalanceSnapshot{}, store.ErrSnapshotNotFound
	}
	return snap, nil
}
