// Package store persists finished artifacts: downlinked images and session logs.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrArtifactIO wraps every failure to write or upload an artifact.
var ErrArtifactIO = errors.New("store: artifact i/o failed")

// Sink stores named artifacts. Put must not retain data after returning.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Memory keeps artifacts in a map. It is used by the simulator and tests.
type Memory struct {
	mu    sync.Mutex
	items map[string][]byte
	order []string
}

var _ Sink = (*Memory)(nil)

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrArtifactIO, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[name]; !ok {
		m.order = append(m.order, name)
	}
	m.items[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a stored artifact.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[name]
	return data, ok
}

// Names lists stored artifacts in the order they were first put.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Multi puts every artifact to each sink in order and joins their errors.
type Multi []Sink

func (ms Multi) Put(ctx context.Context, name string, data []byte) error {
	var errs []error
	for _, s := range ms {
		if err := s.Put(ctx, name, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
