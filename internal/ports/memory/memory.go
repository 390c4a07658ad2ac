// Package memory is an in-process backend. It can be seeded from and
// flushed to a JSON snapshot file so a single-node deployment survives
// restarts without a database.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"kaskelas/internal/core"
	"kaskelas/internal/ports"
)

type entry struct {
	tx      core.Transaction
	version int64
	seq     int64
}

type Store struct {
	mu       sync.RWMutex
	flushMu  sync.Mutex
	path     string
	classes  map[string]core.SchoolClass
	txs      map[string]map[string]*entry
	balances map[string]core.InitialBalances
	seq      int64
}

var (
	_ ports.Repository  = (*Store)(nil)
	_ ports.Snapshotter = (*Store)(nil)
)

// snapshotFile is the on-disk layout of a flushed store.
type snapshotFile struct {
	Classes         []core.SchoolClass              `json:"classes"`
	Transactions    []core.Transaction              `json:"transactions"`
	InitialBalances map[string]core.InitialBalances `json:"initialBalances"`
}

func New() *Store {
	return &Store{
		classes:  map[string]core.SchoolClass{},
		txs:      map[string]map[string]*entry{},
		balances: map[string]core.InitialBalances{},
	}
}

// NewFromFile loads the snapshot at path. A missing file yields an empty
// store that will create the file on the first Flush.
func NewFromFile(path string) (*Store, error) {
	s := New()
	s.path = path

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for _, c := range snap.Classes {
		s.classes[c.ID] = c
	}
	for _, t := range snap.Transactions {
		s.put(t)
	}
	for classID, bal := range snap.InitialBalances {
		s.balances[classID] = bal
	}
	return s, nil
}

func (s *Store) put(t core.Transaction) int64 {
	byID, ok := s.txs[t.ClassID]
	if !ok {
		byID = map[string]*entry{}
		s.txs[t.ClassID] = byID
	}
	if e, ok := byID[t.ID]; ok {
		e.tx = t
		e.version++
		return e.version
	}
	s.seq++
	byID[t.ID] = &entry{tx: t, version: 1, seq: s.seq}
	return 1
}

func (s *Store) ListClasses(_ context.Context) ([]core.SchoolClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SchoolClass, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetClass(_ context.Context, id string) (core.SchoolClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return core.SchoolClass{}, fmt.Errorf("class %q: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) SaveClass(_ context.Context, c core.SchoolClass) error {
	if c.Students == nil {
		c.Students = []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[c.ID] = c
	return nil
}

// ListTransactions returns the class ledger ordered by date, then by
// insertion order.
func (s *Store) ListTransactions(_ context.Context, classID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*entry, 0, len(s.txs[classID]))
	for _, e := range s.txs[classID] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.tx.Date.Equal(b.tx.Date.Time) {
			return a.tx.Date.Before(b.tx.Date.Time)
		}
		return a.seq < b.seq
	})
	out := make([]core.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, classID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.txs[classID][id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return e.tx, nil
}

func (s *Store) SaveTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for classID, byID := range s.txs {
		if _, taken := byID[t.ID]; taken && classID != t.ClassID {
			return 0, fmt.Errorf("transaction %q: %w", t.ID, core.ErrNotFound)
		}
	}
	return s.put(t), nil
}

func (s *Store) DeleteTransaction(_ context.Context, classID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[classID][id]; !ok {
		return fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	delete(s.txs[classID], id)
	return nil
}

func (s *Store) GetInitialBalances(_ context.Context, classID string) (core.InitialBalances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := core.InitialBalances{}
	for k, v := range s.balances[classID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetInitialBalances(_ context.Context, classID string, b core.InitialBalances) error {
	cp := make(core.InitialBalances, len(b))
	for k, v := range b {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[classID] = cp
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Flush writes the whole store to its snapshot file. The write goes to a
// temporary file first and is renamed into place; flushes are serialized
// so an older snapshot never replaces a newer one. Stores created with New
// have no file and Flush does nothing.
func (s *Store) Flush(_ context.Context) error {
	if s.path == "" {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	snap := snapshotFile{
		Classes:         make([]core.SchoolClass, 0, len(s.classes)),
		InitialBalances: make(map[string]core.InitialBalances, len(s.balances)),
	}
	for _, c := range s.classes {
		snap.Classes = append(snap.Classes, c)
	}
	// Entries are copied by value; put mutates them in place.
	var entries []entry
	for _, byID := range s.txs {
		for _, e := range byID {
			entries = append(entries, *e)
		}
	}
	for id, b := range s.balances {
		snap.InitialBalances[id] = b
	}
	s.mu.RUnlock()

	sort.Slice(snap.Classes, func(i, j int) bool { return snap.Classes[i].ID < snap.Classes[j].ID })
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	snap.Transactions = make([]core.Transaction, len(entries))
	for i, e := range entries {
		snap.Transactions[i] = e.tx
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close flushes the store.
func (s *Store) Close() error {
	return s.Flush(context.Background())
}
