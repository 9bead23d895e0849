package field

import (
	"errors"
	"fmt"
)

// ErrUnknownDirection is returned when a delta is not one of the four
// neighbour offsets.
var ErrUnknownDirection = errors.New("field: direction not in table")

// Dir indexes the four neighbour directions in their fixed sweep order.
type Dir uint8

const (
	Up Dir = iota
	Down
	Left
	Right
)

// NumDirs is the number of neighbour directions.
const NumDirs = 4

// Directions lists all directions in sweep order.
var Directions = [NumDirs]Dir{Up, Down, Left, Right}

// deltas holds (drow, dcol) per direction.
var deltas = [NumDirs][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Delta returns the (drow, dcol) offset of d.
func (d Dir) Delta() (int, int) {
	return deltas[d][0], deltas[d][1]
}

// Opposite returns the direction pointing back.
func (d Dir) Opposite() Dir {
	return d ^ 1
}

func (d Dir) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("dir(%d)", uint8(d))
}

// DirOf looks up the direction with offset (drow, dcol).
func DirOf(drow, dcol int) (Dir, error) {
	for i, d := range deltas {
		if d[0] == drow && d[1] == dcol {
			return Dir(i), nil
		}
	}
	return 0, fmt.Errorf("%w: (%d,%d)", ErrUnknownDirection, drow, dcol)
}
