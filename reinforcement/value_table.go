package reinforcement

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"tdgrid/atomic_float"

	"gonum.org/v1/gonum/floats"
)

// ValueReader is the read-only view of a state-value table handed to policies.
type ValueReader interface {
	At(x, y int) float64
	Dims() (width, height int)
}

// ValueTable is a dense width x height table of state-value estimates, zero initialized.
// Cells are atomic so that a view may read the table while its evaluator writes it; the
// evaluator is the only writer.
type ValueTable struct {
	width, height int
	// x-major: cell (x,y) lives at x*height+y
	cells []atomic_float.AtomicFloat64
}

// NewValueTable returns a zeroed table of the passed dimensions.
func NewValueTable(width, height int) *ValueTable {
	return &ValueTable{
		width:  width,
		height: height,
		cells:  make([]atomic_float.AtomicFloat64, width*height),
	}
}

func (vt *ValueTable) Dims() (width, height int) {
	return vt.width, vt.height
}

func (vt *ValueTable) cell(x, y int) *atomic_float.AtomicFloat64 {
	if x < 0 || x >= vt.width || y < 0 || y >= vt.height {
		panic(fmt.Sprintf("value table index (%d,%d) out of range for %dx%d table", x, y, vt.width, vt.height))
	}
	return &vt.cells[x*vt.height+y]
}

// At returns the value estimate of cell (x,y).
func (vt *ValueTable) At(x, y int) float64 {
	return vt.cell(x, y).Load()
}

// Set overwrites the value estimate of cell (x,y).
func (vt *ValueTable) Set(x, y int, val float64) {
	vt.cell(x, y).Store(val)
}

// Add adds delta to cell (x,y) and returns the new estimate.
func (vt *ValueTable) Add(x, y int, delta float64) float64 {
	return vt.cell(x, y).Add(delta)
}

// Values returns a copy of the table in x-major order.
func (vt *ValueTable) Values() []float64 {
	values := make([]float64, len(vt.cells))
	for i := range vt.cells {
		values[i] = vt.cells[i].Load()
	}
	return values
}

// Load overwrites the table with values, which must be in x-major order and sized to the table.
func (vt *ValueTable) Load(values []float64) error {
	if len(values) != len(vt.cells) {
		return fmt.Errorf("load values: have %d values, table has %d cells", len(values), len(vt.cells))
	}
	for i, val := range values {
		vt.cells[i].Store(val)
	}
	return nil
}

// MaxAbsDiff returns the largest absolute element-wise difference of two equally sized
// value snapshots, i.e. their L-infinity distance.
func MaxAbsDiff(prev, cur []float64) float64 {
	return floats.Distance(prev, cur, math.Inf(1))
}

// FormatValues writes an x-major snapshot as a grid, one row of cells per line, each
// value rounded to a single decimal.
func FormatValues(w io.Writer, width, height int, values []float64) error {
	var sb strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fmt.Fprintf(&sb, "%7.1f", values[x*height+y])
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ShowValues prints an x-major snapshot to the console.
func ShowValues(width, height int, values []float64) {
	_ = FormatValues(os.Stdout, width, height, values)
}
