package turn

// Key identifies a typed value in the turn-scoped registry.
type Key[T any] struct {
	name string
}

// NewKey returns the key for name. Keys with the same name and type address
// the same slot.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

func (k Key[T]) String() string { return k.name }

// Set stores v under key for the rest of the turn.
func Set[T any](tc *Context, key Key[T], v T) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.services[key] = v
}

// Get returns the value stored under key.
func Get[T any](tc *Context, key Key[T]) (T, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.services[key].(T)
	return v, ok
}

// Delete removes key from the registry.
func Delete[T any](tc *Context, key Key[T]) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.services, key)
}
