// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"math"

	. "tdgrid/grid_world"
	"tdgrid/reinforcement"
)

// Cell is a grid cell as the views need it, in svg orientation: [0][0] is the top left
// cell, as printed on the console. Cell fields should be immediately usable as view
// parameters.
type Cell struct {
	X, Y  int
	Value float64
	// PolicyArrowRotation is the rotation in degrees, clockwise from up, of an arrow
	// pointing at the best valued neighbor.
	PolicyArrowRotation int
	Fill                string
	Label               string
}

// Convert transforms a checkpoint snapshot into Cells for consumption by the values views.
// The grid world's y axis already points down, so no flip is needed.
func Convert(snap reinforcement.Snapshot) (cells [][]Cell) {
	cells = make([][]Cell, snap.Width)
	for x := range cells {
		cells[x] = make([]Cell, snap.Height)
		for y := range cells[x] {
			pos := Position{X: x, Y: y}
			cells[x][y] = Cell{
				X:                   x,
				Y:                   y,
				Value:               snap.At(x, y),
				PolicyArrowRotation: getDegrees(bestNeighbor(snap, x, y)),
				Fill:                getFill(snap, pos),
				Label:               getLabel(snap, pos),
			}
		}
	}
	return
}

// bestNeighbor returns the action leading to the highest valued in-grid neighbor,
// the first in action order on ties.
func bestNeighbor(snap reinforcement.Snapshot, x, y int) Action {
	best, bestVal := Up, math.Inf(-1)
	for _, action := range Actions {
		nx, ny := x, y
		switch action {
		case Up:
			ny--
		case Down:
			ny++
		case Left:
			nx--
		case Right:
			nx++
		}
		if nx < 0 || nx >= snap.Width || ny < 0 || ny >= snap.Height {
			continue
		}
		if val := snap.At(nx, ny); val > bestVal {
			best, bestVal = action, val
		}
	}
	return best
}

// getDegrees converts an action into the degrees passed to svg's rotate() for an
// upward arrow rune.
func getDegrees(action Action) int {
	switch action {
	case Right:
		return 90
	case Down:
		return 180
	case Left:
		return 270
	}
	return 0
}

func getFill(snap reinforcement.Snapshot, pos Position) (fill string) {
	switch pos {
	case snap.Agent:
		fill = "lightgreen"
	case snap.CellA:
		fill = "lightyellow"
	case snap.CellB:
		fill = "lightblue"
	default:
		fill = "white"
	}
	return
}

func getLabel(snap reinforcement.Snapshot, pos Position) string {
	switch pos {
	case snap.CellA:
		return "A"
	case snap.CellB:
		return "B"
	}
	return ""
}
