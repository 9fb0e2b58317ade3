package session

import (
	"context"
	"hash/fnv"
	"sync"
)

// Phase is the dialogue position of a participant.
type Phase string

const (
	PhaseNone              Phase = "NONE"
	PhaseAwaitingStudentID Phase = "AWAITING_STUDENT_ID"
	PhaseAwaitingName      Phase = "AWAITING_NAME"
	PhaseAwaitingLocation  Phase = "AWAITING_LOCATION"
)

// State is the ephemeral registration data collected for one participant.
// StudentID is set from PhaseAwaitingName onwards, Name only in
// PhaseAwaitingLocation.
type State struct {
	Phase     Phase  `json:"phase"`
	StudentID string `json:"student_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Store keeps per-participant dialogue state.
type Store interface {
	// Get returns the state and whether one was present.
	Get(ctx context.Context, identity string) (State, bool, error)
	Set(ctx context.Context, identity string, st State) error
	Clear(ctx context.Context, identity string) error
}

const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	items map[string]State
}

// MemoryStore is a process-local Store sharded to keep lock contention low.
// Its contents are lost on restart.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]State)}
	}
	return s
}

func (s *MemoryStore) shardFor(identity string) *shard {
	return s.shards[shardIndex(identity)]
}

// Get returns the stored state.
func (s *MemoryStore) Get(_ context.Context, identity string) (State, bool, error) {
	sh := s.shardFor(identity)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.items[identity]
	return st, ok, nil
}

// Set overwrites the state for identity.
func (s *MemoryStore) Set(_ context.Context, identity string, st State) error {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.items[identity] = st
	return nil
}

// Clear drops the state for identity.
func (s *MemoryStore) Clear(_ context.Context, identity string) error {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.items, identity)
	return nil
}

// Len reports how many participants currently hold a session.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
