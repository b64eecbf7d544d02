package session

// Tracked wraps a field value with a changed flag so Sync only flushes what was mutated.
type Tracked[T any] struct {
	value   T
	changed bool
}

func NewTracked[T any](v T) Tracked[T] {
	return Tracked[T]{value: v}
}

func (t *Tracked[T]) Get() T { return t.value }

// Set assigns and marks the field dirty.
func (t *Tracked[T]) Set(v T) {
	t.value = v
	t.changed = true
}

// Load assigns without marking the field dirty. Only used when hydrating from storage.
func (t *Tracked[T]) Load(v T) {
	t.value = v
}

// MarkChanged flags in-place mutations of reference values (maps, slices).
func (t *Tracked[T]) MarkChanged() { t.changed = true }

func (t *Tracked[T]) Changed() bool { return t.changed }

func (t *Tracked[T]) Clear() { t.changed = false }
