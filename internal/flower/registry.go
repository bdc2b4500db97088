package flower

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the authoritative in-memory view of the fleet and the
// single-writer mutation gateway for runtime device state.
//
// Static fields are persisted through the Repository; runtime fields
// live only in the cache. The command dispatcher mutates units
// exclusively through Apply and TouchConnection, so every observer
// sees one consistent write path regardless of which outcome branch
// triggered the change.
//
// All public methods are thread-safe.
type Registry struct {
	repo  Repository
	cache map[int]*Unit
	mu    sync.RWMutex

	logger Logger

	// onChange is invoked (outside the lock) after every runtime
	// mutation, with a copy of the updated unit.
	onChange func(Unit)
	hookMu   sync.RWMutex
}

// NewRegistry creates a new fleet registry.
// The repository is used for persistence; the registry adds the cache
// and the runtime mutation gateway.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[int]*Unit),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetOnChange registers a callback invoked after every runtime state
// mutation. Used to feed the WebSocket hub and the MQTT publisher.
func (r *Registry) SetOnChange(fn func(Unit)) {
	r.hookMu.Lock()
	r.onChange = fn
	r.hookMu.Unlock()
}

// Load reads the fleet from the repository into the cache.
// Runtime fields are reset to their defaults (Disconnected, Closed,
// brightness 0). Should be called on startup.
func (r *Registry) Load(ctx context.Context) error {
	units, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading fleet: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[int]*Unit, len(units))
	for i := range units {
		u := units[i]
		u.ResetRuntime()
		r.cache[u.ID] = &u
	}

	r.logger.Info("fleet loaded", "count", len(units))
	return nil
}

// Get returns a copy of the unit with the given wire address.
func (r *Registry) Get(id int) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.cache[id]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return *u, nil
}

// GetByPriority returns a copy of the unit bound to the given priority
// key. Show events reference units by priority, not wire address.
func (r *Registry) GetByPriority(priority int) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.cache {
		if u.Priority == priority {
			return *u, nil
		}
	}
	return Unit{}, ErrNotFound
}

// All returns copies of every unit in the fleet.
func (r *Registry) All() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]Unit, 0, len(r.cache))
	for _, u := range r.cache {
		units = append(units, *u)
	}
	return units
}

// Count returns the number of units in the fleet.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Add persists a new unit and caches it with default runtime state.
func (r *Registry) Add(ctx context.Context, u Unit) error {
	u.ResetRuntime()
	if err := r.repo.Create(ctx, &u); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[u.ID] = &u
	r.mu.Unlock()

	r.logger.Info("flower added", "id", u.ID, "category", u.Category)
	return nil
}

// UpdateStatic persists changes to a unit's static fields (category,
// bus assignment, priority) without touching its runtime state.
func (r *Registry) UpdateStatic(ctx context.Context, u Unit) error {
	if err := r.repo.Update(ctx, &u); err != nil {
		return err
	}

	r.mu.Lock()
	if cached, ok := r.cache[u.ID]; ok {
		cached.Category = u.Category
		cached.BusID = u.BusID
		cached.Priority = u.Priority
	} else {
		u.ResetRuntime()
		r.cache[u.ID] = &u
	}
	r.mu.Unlock()

	r.logger.Info("flower updated", "id", u.ID)
	return nil
}

// Delete removes a unit from the store and the cache.
func (r *Registry) Delete(ctx context.Context, id int) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("flower deleted", "id", id)
	return nil
}

// Apply runs a mutator against the unit's current record under the
// write lock. This is the single entry point for runtime state
// mutation; the dispatcher calls it on every settled command.
// Unknown IDs are ignored: the command may target a unit that was
// deleted while queued.
func (r *Registry) Apply(id int, mutate Mutator) {
	if mutate == nil {
		return
	}

	r.mu.Lock()
	u, ok := r.cache[id]
	if ok {
		mutate(u)
	}
	var updated Unit
	if ok {
		updated = *u
	}
	r.mu.Unlock()

	if ok {
		r.notify(updated)
	}
}

// TouchConnection sets only the connection status of a unit.
// Convenience wrapper over Apply for the dispatcher's outcome branches.
func (r *Registry) TouchConnection(id int, status ConnectionStatus) {
	r.Apply(id, func(u *Unit) {
		u.ConnectionStatus = status
	})
}

// notify invokes the change hook outside the registry lock.
func (r *Registry) notify(u Unit) {
	r.hookMu.RLock()
	fn := r.onChange
	r.hookMu.RUnlock()

	if fn != nil {
		fn(u)
	}
}
