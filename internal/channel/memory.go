package channel

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-process Store backed by a mutex-guarded map with
// per-key expiry. A janitor goroutine sweeps expired entries so idle
// sessions don't accumulate.
type MemoryStore struct {
	outputTTL time.Duration
	relayTTL  time.Duration

	mu      sync.RWMutex
	outputs map[string]entry
	prompts map[string]entry
	inputs  map[string]entry

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its janitor.
// Zero TTLs fall back to the package defaults.
func NewMemoryStore(outputTTL, relayTTL time.Duration) *MemoryStore {
	if outputTTL <= 0 {
		outputTTL = DefaultOutputTTL
	}
	if relayTTL <= 0 {
		relayTTL = DefaultRelayTTL
	}
	s := &MemoryStore{
		outputTTL: outputTTL,
		relayTTL:  relayTTL,
		outputs:   make(map[string]entry),
		prompts:   make(map[string]entry),
		inputs:    make(map[string]entry),
		stop:      make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.relayTTL
	if s.outputTTL < interval {
		interval = s.outputTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range []map[string]entry{s.outputs, s.prompts, s.inputs} {
		for k, e := range m {
			if e.expired(now) {
				delete(m, k)
			}
		}
	}
}

func (s *MemoryStore) AppendOutput(ctx context.Context, sessionID, text string) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if e, ok := s.outputs[sessionID]; ok && !e.expired(now) {
		b.WriteString(e.value)
	}
	b.WriteString(text)
	s.outputs[sessionID] = entry{value: b.String(), expiresAt: now.Add(s.outputTTL)}
	return nil
}

func (s *MemoryStore) ReadOutput(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.outputs[sessionID]
	if !ok || e.expired(time.Now()) {
		return "", nil
	}
	return e.value, nil
}

func (s *MemoryStore) ClearOutput(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outputs, sessionID)
	return nil
}

func (s *MemoryStore) SetPrompt(ctx context.Context, sessionID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[sessionID] = entry{value: prompt, expiresAt: time.Now().Add(s.relayTTL)}
	return nil
}

func (s *MemoryStore) GetPrompt(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.prompts[sessionID]
	if !ok || e.expired(time.Now()) {
		return "", nil
	}
	return e.value, nil
}

func (s *MemoryStore) ClearPrompt(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts, sessionID)
	return nil
}

func (s *MemoryStore) SetInput(ctx context.Context, sessionID, input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[sessionID] = entry{value: input, expiresAt: time.Now().Add(s.relayTTL)}
	return nil
}

func (s *MemoryStore) TakeInput(ctx context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.inputs[sessionID]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	delete(s.inputs, sessionID)
	return e.value, true, nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
