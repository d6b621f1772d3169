package activity

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CallbackFactory builds the completion/cancellation callbacks for one
// account's machine.
type CallbackFactory func(accountID int64) Callbacks

// Registry hands out one Machine per account, created lazily.
type Registry struct {
	store   Store
	tick    time.Duration
	factory CallbackFactory
	logger  *zap.Logger

	mu       sync.Mutex
	machines map[int64]*Machine
}

// NewRegistry creates a machine registry.
func NewRegistry(store Store, tick time.Duration, factory CallbackFactory, logger *zap.Logger) *Registry {
	return &Registry{
		store:    store,
		tick:     tick,
		factory:  factory,
		logger:   logger,
		machines: make(map[int64]*Machine),
	}
}

// Get returns the machine for an account, creating it on first use.
func (r *Registry) Get(accountID int64) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.machines[accountID]; ok {
		return m
	}
	var cb Callbacks
	if r.factory != nil {
		cb = r.factory(accountID)
	}
	m := NewMachine(r.store, accountID, cb, r.tick, r.logger)
	r.machines[accountID] = m
	return m
}
