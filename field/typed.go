package field

// Scalar is one value of T per cell.
type Scalar[T any] struct {
	v []T
}

// NewScalar allocates a zeroed scalar field for g.
func NewScalar[T any](g *Grid) Scalar[T] {
	return Scalar[T]{v: make([]T, g.size.Cells())}
}

// Values exposes the backing slice.
func (s Scalar[T]) Values() []T { return s.v }

// Get returns the value at i.
func (s Scalar[T]) Get(i int) T { return s.v[i] }

// Set writes the value at i.
func (s Scalar[T]) Set(i int, x T) { s.v[i] = x }

// CopyFrom overwrites s with o.
func (s Scalar[T]) CopyFrom(o Scalar[T]) { copy(s.v, o.v) }

// Vector holds four values of T per cell, one per direction.
type Vector[T any] struct {
	v [][NumDirs]T
}

// NewVector allocates a zeroed vector field for g.
func NewVector[T any](g *Grid) Vector[T] {
	return Vector[T]{v: make([][NumDirs]T, g.size.Cells())}
}

// Get returns the value on edge (i, d).
func (f Vector[T]) Get(i int, d Dir) T { return f.v[i][d] }

// Set writes the value on edge (i, d).
func (f Vector[T]) Set(i int, d Dir, x T) { f.v[i][d] = x }

// Ptr returns a pointer to edge (i, d) for in-place updates.
func (f Vector[T]) Ptr(i int, d Dir) *T { return &f.v[i][d] }

// Cell returns a pointer to all four edges of cell i.
func (f Vector[T]) Cell(i int) *[NumDirs]T { return &f.v[i] }

// Reset zeroes every edge.
func (f Vector[T]) Reset() {
	clear(f.v)
}

// Len returns the number of cells covered.
func (f Vector[T]) Len() int { return len(f.v) }
