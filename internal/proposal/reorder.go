package proposal

import "fmt"

// move implements the extract-then-reinsert reorder shared by every
// ordered collection. The element at from is removed first, then
// inserted at to computed against the shortened slice, which matches
// drag-and-drop semantics: dropping at visual position j puts the item
// at index j of the resulting slice. Returns a new slice; the input is
// never mutated, so a failed call cannot leave a partial reorder.
func move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) {
		return nil, fmt.Errorf("%w: from=%d len=%d", ErrIndexOutOfRange, from, len(items))
	}
	if to < 0 || to >= len(items) {
		return nil, fmt.Errorf("%w: to=%d len=%d", ErrIndexOutOfRange, to, len(items))
	}
	out := append([]T(nil), items...)
	if from == to {
		return out, nil
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out, nil
}

// insertAt returns a new slice with item inserted at index i. i may
// equal len(items) to append.
func insertAt[T any](items []T, i int, item T) ([]T, error) {
	if i < 0 || i > len(items) {
		return nil, fmt.Errorf("%w: index=%d len=%d", ErrIndexOutOfRange, i, len(items))
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, item)
	out = append(out, items[i:]...)
	return out, nil
}

// removeAt returns a new slice with the element at index i removed.
func removeAt[T any](items []T, i int) ([]T, error) {
	if i < 0 || i >= len(items) {
		return nil, fmt.Errorf("%w: index=%d len=%d", ErrIndexOutOfRange, i, len(items))
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return out, nil
}
