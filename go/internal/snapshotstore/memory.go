package snapshotstore

import (
	"context"
	"sync"

	"github.com/arjunamarcelino/velobid/go/internal/models"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	view  models.CategorizedView
	saved bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveView(_ context.Context, view models.CategorizedView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = view.Clone()
	m.saved = true
	return nil
}

func (m *Memory) LoadView(_ context.Context) (models.CategorizedView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.saved {
		return models.CategorizedView{}, ErrNotFound
	}
	return m.view.Clone(), nil
}
