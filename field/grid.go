// Package field holds the per-cell state of a simulation grid: species
// bytes, open-neighbour counts, visitation ticks and the typed pressure and
// velocity fields.
package field

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reserved species codes.
const (
	Wall  byte = '#'
	Empty byte = ' '
	// Fluid is the species whose released force is damped during relaxation.
	Fluid byte = '.'
)

// ErrBadMap is returned when a field map does not fit the grid or breaks the
// wall-border rule.
var ErrBadMap = errors.New("field: invalid field map")

// Storage selects how a grid allocates its per-cell state.
type Storage uint8

const (
	// Dense carves the integer fields out of one backing allocation. Used for
	// sizes from the compiled set.
	Dense Storage = iota
	// Dynamic allocates each field on its own. Used for sizes only known at
	// run start.
	Dynamic
)

func (s Storage) String() string {
	if s == Dynamic {
		return "dynamic"
	}
	return "dense"
}

// Grid stores the static and bookkeeping state of every cell in row-major
// order. Cell (row, col) lives at index row*Cols+col.
type Grid struct {
	size    Size
	storage Storage

	species []byte
	open    []int
	lastUse []int

	offsets [NumDirs]int

	openComputed bool
	released     bool
}

// NewGrid allocates an all-empty grid.
func NewGrid(size Size, storage Storage) *Grid {
	n := size.Cells()
	g := &Grid{size: size, storage: storage}

	switch storage {
	case Dynamic:
		g.species = make([]byte, n)
		g.open = make([]int, n)
		g.lastUse = make([]int, n)
	default:
		ints := make([]int, 2*n)
		g.species = make([]byte, n)
		g.open = ints[:n:n]
		g.lastUse = ints[n:]
	}

	for i := range g.species {
		g.species[i] = Empty
	}
	for _, d := range Directions {
		dr, dc := d.Delta()
		g.offsets[d] = dr*size.Cols + dc
	}
	return g
}

// Size returns the grid dimensions.
func (g *Grid) Size() Size { return g.size }

// Storage returns the allocation strategy.
func (g *Grid) Storage() Storage { return g.storage }

// Index returns the linear index of (row, col).
func (g *Grid) Index(row, col int) int { return row*g.size.Cols + col }

// Coords returns the (row, col) of a linear index.
func (g *Grid) Coords(i int) (int, int) { return i / g.size.Cols, i % g.size.Cols }

// Neighbor returns the linear index of i's neighbour in direction d. No
// bounds wrapping happens; the wall border keeps it in range.
func (g *Grid) Neighbor(i int, d Dir) int { return i + g.offsets[d] }

// DirTo returns the direction from cell a to the adjacent cell b. Cells that
// are not edge neighbours yield ErrUnknownDirection.
func (g *Grid) DirTo(a, b int) (Dir, error) {
	ar, ac := g.Coords(a)
	br, bc := g.Coords(b)
	return DirOf(br-ar, bc-ac)
}

// Offsets exposes the per-direction index offsets for hot loops.
func (g *Grid) Offsets() [NumDirs]int { return g.offsets }

// Species exposes the species bytes so callers can read/write them directly.
func (g *Grid) Species() []byte { return g.species }

// LastUse exposes the visitation ticks.
func (g *Grid) LastUse() []int { return g.lastUse }

// Open exposes the open-neighbour counts.
func (g *Grid) Open() []int { return g.open }

// IsWall reports whether cell i is a wall.
func (g *Grid) IsWall(i int) bool { return g.species[i] == Wall }

// At returns the species at (row, col).
func (g *Grid) At(row, col int) byte { return g.species[g.Index(row, col)] }

// Set writes the species at (row, col).
func (g *Grid) Set(row, col int, species byte) { g.species[g.Index(row, col)] = species }

// Load copies a field map into the grid. Every row must have exactly Cols
// bytes and the outer border must be wall.
func (g *Grid) Load(rows []string) error {
	if len(rows) != g.size.Rows {
		return fmt.Errorf("%w: %d rows, want %d", ErrBadMap, len(rows), g.size.Rows)
	}
	for r, line := range rows {
		if len(line) != g.size.Cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrBadMap, r, len(line), g.size.Cols)
		}
	}
	for r, line := range rows {
		for c := 0; c < g.size.Cols; c++ {
			border := r == 0 || c == 0 || r == g.size.Rows-1 || c == g.size.Cols-1
			if border && line[c] != Wall {
				return fmt.Errorf("%w: border cell (%d,%d) is %q, want wall", ErrBadMap, r, c, line[c])
			}
		}
		copy(g.species[r*g.size.Cols:], line)
	}
	g.openComputed = false
	return nil
}

// ComputeOpenNeighbors counts the non-wall neighbours of every non-wall cell.
// The counts are computed once per run; later calls are no-ops.
func (g *Grid) ComputeOpenNeighbors() {
	if g.openComputed {
		return
	}
	for i, sp := range g.species {
		g.open[i] = 0
		if sp == Wall {
			continue
		}
		for _, off := range g.offsets {
			if g.species[i+off] != Wall {
				g.open[i]++
			}
		}
	}
	g.openComputed = true
}

// OccupiedCount returns the number of cells that are neither wall nor empty.
func (g *Grid) OccupiedCount() int {
	n := 0
	for _, sp := range g.species {
		if sp != Wall && sp != Empty {
			n++
		}
	}
	return n
}

// Rows renders every row as a string.
func (g *Grid) Rows() []string {
	rows := make([]string, g.size.Rows)
	for r := range rows {
		rows[r] = string(g.species[r*g.size.Cols : (r+1)*g.size.Cols])
	}
	return rows
}

// WriteTo writes the grid as text, one line per row.
func (g *Grid) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for r := 0; r < g.size.Rows; r++ {
		k, err := bw.Write(g.species[r*g.size.Cols : (r+1)*g.size.Cols])
		n += int64(k)
		if err != nil {
			return n, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// Release drops the grid's storage. Safe to call more than once.
func (g *Grid) Release() {
	if g == nil || g.released {
		return
	}
	g.species = nil
	g.open = nil
	g.lastUse = nil
	g.released = true
}

// Released reports whether Release has run.
func (g *Grid) Released() bool { return g.released }
