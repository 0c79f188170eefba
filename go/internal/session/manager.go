// Package session tracks the connected wallet identity for the process and
// lets components subscribe to connect and disconnect events.
package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Identity is a connected wallet.
type Identity struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chain_id"`
}

// Registrar checks and performs the ledger's one-time user registration.
type Registrar interface {
	IsRegistered(ctx context.Context, address string) (bool, error)
	RegisterUser(ctx context.Context, address string) error
}

// Listener receives the identity after every change. connected is false after a disconnect.
type Listener func(id Identity, connected bool)

// Manager holds the current identity. The zero identity means disconnected.
type Manager struct {
	registrar Registrar

	mu         sync.RWMutex
	current    *Identity
	registered map[string]bool

	subsMu sync.Mutex
	subs   map[uuid.UUID]Listener
}

func NewManager(registrar Registrar) *Manager {
	return &Manager{
		registrar:  registrar,
		registered: make(map[string]bool),
		subs:       make(map[uuid.UUID]Listener),
	}
}

// Connect sets the current identity and registers it with the ledger if needed.
// Registration failures are logged and retried on the next Connect.
func (m *Manager) Connect(ctx context.Context, address string, chainID uint64) (Identity, error) {
	address = strings.TrimSpace(address)
	if !addressPattern.MatchString(address) {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	id := Identity{Address: address, ChainID: chainID}
	m.mu.Lock()
	m.current = &id
	m.mu.Unlock()

	log.Info().Str("address", address).Uint64("chain_id", chainID).Msg("wallet connected")
	m.broadcast(id, true)

	if err := m.EnsureRegistered(ctx); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("user registration failed")
	}
	return id, nil
}

// Disconnect clears the current identity.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	if prev == nil {
		return
	}
	log.Info().Str("address", prev.Address).Msg("wallet disconnected")
	m.broadcast(*prev, false)
}

// Current returns the connected identity.
func (m *Manager) Current() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}

// RequireChain returns the connected identity if it is on chainID.
func (m *Manager) RequireChain(chainID uint64) (Identity, error) {
	id, ok := m.Current()
	if !ok {
		return Identity{}, ErrNotConnected
	}
	if id.ChainID != chainID {
		return Identity{}, fmt.Errorf("%w: got %d, want %d", ErrWrongChain, id.ChainID, chainID)
	}
	return id, nil
}

// EnsureRegistered registers the connected address unless it was already
// confirmed registered during this session.
func (m *Manager) EnsureRegistered(ctx context.Context) error {
	id, ok := m.Current()
	if !ok {
		return ErrNotConnected
	}
	if m.registrar == nil {
		return nil
	}

	m.mu.RLock()
	done := m.registered[id.Address]
	m.mu.RUnlock()
	if done {
		return nil
	}

	registered, err := m.registrar.IsRegistered(ctx, id.Address)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		if err := m.registrar.RegisterUser(ctx, id.Address); err != nil {
			return fmt.Errorf("register user: %w", err)
		}
		log.Info().Str("address", id.Address).Msg("registered new user")
	}

	m.mu.Lock()
	m.registered[id.Address] = true
	m.mu.Unlock()
	return nil
}

// Subscribe adds fn to the listeners. The returned func removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	key := uuid.New()
	m.subsMu.Lock()
	m.subs[key] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, key)
		m.subsMu.Unlock()
	}
}

func (m *Manager) broadcast(id Identity, connected bool) {
	m.subsMu.Lock()
	listeners := make([]Listener, 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range listeners {
		fn(id, connected)
	}
}
