package field

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed maps/default.txt
var defaultMap string

// DefaultSize is the size of the embedded default map.
var DefaultSize = Size{Rows: 36, Cols: 84}

// DefaultMap returns the embedded 36x84 field map.
func DefaultMap() []string {
	rows, err := ReadMap(strings.NewReader(defaultMap))
	if err != nil {
		panic(fmt.Sprintf("field: embedded default map: %v", err))
	}
	return rows
}

// ReadMap reads a field map, one row per line. Carriage returns and a
// trailing empty line are dropped.
func ReadMap(r io.Reader) ([]string, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		rows = append(rows, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading field map: %w", err)
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty map", ErrBadMap)
	}
	return rows, nil
}

// LoadMapFile reads a field map from disk.
func LoadMapFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening field map: %w", err)
	}
	defer f.Close()
	return ReadMap(f)
}

// MapSize returns the dimensions of a map, assuming rows of equal width.
func MapSize(rows []string) Size {
	if len(rows) == 0 {
		return Size{}
	}
	return Size{Rows: len(rows), Cols: len(rows[0])}
}
