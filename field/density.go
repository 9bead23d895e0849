package field

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
)

// Densities maps every species byte to its density. Unset species have
// density zero.
type Densities [256]float64

// DefaultDensities returns the stock table: air at 0.01 and fluid at 1000.
func DefaultDensities() Densities {
	var d Densities
	d[Empty] = 0.01
	d[Fluid] = 1000
	return d
}

// densityRow is one line of a density CSV file.
type densityRow struct {
	Species string  `csv:"species"`
	Density float64 `csv:"density"`
}

// LoadDensityCSV overlays species,density rows onto base. Each species must
// be exactly one byte.
func LoadDensityCSV(r io.Reader, base Densities) (Densities, error) {
	var rows []*densityRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return base, fmt.Errorf("decoding density csv: %w", err)
	}
	for i, row := range rows {
		if len(row.Species) != 1 {
			return base, fmt.Errorf("density csv row %d: species %q is not a single byte", i+1, row.Species)
		}
		base[row.Species[0]] = row.Density
	}
	return base, nil
}

// LoadDensityFile reads a density CSV from disk.
func LoadDensityFile(path string, base Densities) (Densities, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("opening density csv: %w", err)
	}
	defer f.Close()
	return LoadDensityCSV(f, base)
}

// WriteCSV writes every non-zero entry as species,density rows in byte order.
func (d *Densities) WriteCSV(w io.Writer) error {
	var rows []*densityRow
	for sp, v := range d {
		if v != 0 {
			rows = append(rows, &densityRow{Species: string([]byte{byte(sp)}), Density: v})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Species < rows[j].Species })
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("encoding density csv: %w", err)
	}
	return nil
}
