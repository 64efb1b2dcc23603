package param

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Notifier is called after a parameter value changed through the registry.
// It runs on whichever thread made the change, including the audio thread,
// so it must not block or allocate.
type Notifier func(id uint32, value float64)

// index is an immutable view of the registry, replaced on every Add.
type index struct {
	params map[uint32]*Parameter
	order  []uint32
}

// Registry manages plugin parameters. Lookups are lock-free; Add is
// serialized and expected to happen before processing starts.
type Registry struct {
	mu       sync.Mutex
	current  atomic.Pointer[index]
	notifier atomic.Pointer[Notifier]
}

// NewRegistry creates an empty parameter registry
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&index{params: map[uint32]*Parameter{}})
	return r
}

// Add registers parameters. A duplicate ID is an error; parameters before it
// are still added.
func (r *Registry) Add(params ...*Parameter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	next := &index{
		params: make(map[uint32]*Parameter, len(old.params)+len(params)),
		order:  append(make([]uint32, 0, len(old.order)+len(params)), old.order...),
	}
	for id, p := range old.params {
		next.params[id] = p
	}

	var err error
	for _, p := range params {
		if _, exists := next.params[p.ID]; exists {
			err = fmt.Errorf("parameter ID %d already registered", p.ID)
			break
		}
		next.params[p.ID] = p
		next.order = append(next.order, p.ID)
	}
	r.current.Store(next)
	return err
}

// Get retrieves a parameter by ID
func (r *Registry) Get(id uint32) *Parameter {
	return r.current.Load().params[id]
}

// Count returns the number of parameters
func (r *Registry) Count() int {
	return len(r.current.Load().order)
}

// IDs returns parameter IDs in registration order.
func (r *Registry) IDs() []uint32 {
	order := r.current.Load().order
	ids := make([]uint32, len(order))
	copy(ids, order)
	return ids
}

// All returns all parameters in registration order
func (r *Registry) All() []*Parameter {
	idx := r.current.Load()
	result := make([]*Parameter, len(idx.order))
	for i, id := range idx.order {
		result[i] = idx.params[id]
	}
	return result
}

// SetNotifier installs the change notifier; nil removes it.
func (r *Registry) SetNotifier(fn Notifier) {
	if fn == nil {
		r.notifier.Store(nil)
		return
	}
	r.notifier.Store(&fn)
}

// SetValue stores a normalized value and notifies the installed notifier with
// the clamped result. Unknown IDs return false. Safe for the audio thread as
// long as the notifier is.
func (r *Registry) SetValue(id uint32, value float64) bool {
	p := r.Get(id)
	if p == nil {
		return false
	}
	stored := p.SetValue(value)
	if fn := r.notifier.Load(); fn != nil {
		(*fn)(id, stored)
	}
	return true
}

// Value returns the normalized value of id, or 0 for unknown IDs.
func (r *Registry) Value(id uint32) float64 {
	if p := r.Get(id); p != nil {
		return p.Value()
	}
	return 0
}

// Snapshot captures the current values of every parameter.
func (r *Registry) Snapshot() Snapshot {
	idx := r.current.Load()
	values := make([]Value, len(idx.order))
	for i, id := range idx.order {
		values[i] = Value{ID: id, Value: idx.params[id].Value()}
	}
	return Snapshot{
		values: values,
		format: func(id uint32, v float64) string {
			if p := idx.params[id]; p != nil {
				return p.Format(v)
			}
			return ""
		},
	}
}
