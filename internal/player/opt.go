package player

// Opt is a value that is either present or absent. The zero value is absent.
//
// Invariant: an absent Opt always holds the zero T, so Opt values compare
// structurally with ==.
type Opt[T comparable] struct {
	v  T
	ok bool
}

// Some returns a present Opt holding v.
func Some[T comparable](v T) Opt[T] {
	return Opt[T]{v: v, ok: true}
}

// None returns an absent Opt.
func None[T comparable]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.v, o.ok
}

// Present reports whether o holds a value.
func (o Opt[T]) Present() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Opt[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.v
}
