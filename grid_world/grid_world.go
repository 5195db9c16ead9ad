package grid_world

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
)

// Action is one of the four compass moves. The zero value is Up.
// Values outside of Up..Right are accepted by Act but do nothing except cost a step.
type Action int

const (
	Up Action = iota
	Down
	Left
	Right
)

// NUM_ACTIONS is the size of the action set, used for uniform random selection.
const NUM_ACTIONS = 4

// Actions lists the valid actions in index order.
var Actions = [NUM_ACTIONS]Action{Up, Down, Left, Right}

func (a Action) String() string {
	switch a {
	case Up:
		return "u"
	case Down:
		return "d"
	case Left:
		return "l"
	case Right:
		return "r"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

const (
	// Grid dimensions below these are clamped up.
	MIN_WIDTH  = 5
	MIN_HEIGHT = 5

	// Rewards
	STEP_REWARD = -1
	A_REWARD    = 10
	B_REWARD    = 5

	// Teleport displacements along y, applied when leaving A or B.
	A_JUMP = 4
	B_JUMP = 2
)

// Position is an x/y grid coordinate. (0,0) is the top left cell when rendered;
// increasing y moves down.
type Position struct {
	X, Y int
}

// The two special cells. These are fixed for every grid.
var (
	CellA = Position{X: 1, Y: 0}
	CellB = Position{X: 3, Y: 0}
)

// GridWorld is the environment: the grid geometry, the agent's current position and
// the transition/reward rules. It is not safe for concurrent use; each evaluation
// owns its own instance.
type GridWorld struct {
	width, height int
	x0, y0        int
	x, y          int
	a, b          Position
}

// NewGridWorld returns a grid of the passed dimensions with the agent at (x0, y0).
// Nothing is rejected: width and height are raised to their minimums and the start
// position is clamped into [0, width-2] x [0, height-2].
func NewGridWorld(width, height, x0, y0 int) *GridWorld {
	width = max(width, MIN_WIDTH)
	height = max(height, MIN_HEIGHT)
	x0 = clamp(x0, 0, width-2)
	y0 = clamp(y0, 0, height-2)

	return &GridWorld{
		width:  width,
		height: height,
		x0:     x0,
		y0:     y0,
		x:      x0,
		y:      y0,
		a:      CellA,
		b:      CellB,
	}
}

func clamp(val, lo, hi int) int {
	return max(lo, min(val, hi))
}

// Act applies the action and returns the new position and the reward for the transition.
// The teleport rules are checked before the requested action is considered: leaving A
// moves the agent A_JUMP cells down for A_REWARD, leaving B moves it B_JUMP cells down for
// B_REWARD, whatever action was passed. The resulting y is not bounds checked; with the
// fixed cells and minimum grid height it always lands on the grid.
// Otherwise every action costs STEP_REWARD, whether it moves the agent or is blocked by
// the grid boundary. Unrecognized actions are treated as blocked moves.
func (gw *GridWorld) Act(action Action) (x, y int, reward float64) {
	switch gw.Position() {
	case gw.a:
		gw.y += A_JUMP
		return gw.x, gw.y, A_REWARD
	case gw.b:
		gw.y += B_JUMP
		return gw.x, gw.y, B_REWARD
	}

	switch action {
	case Up:
		if gw.y > 0 {
			gw.y--
		}
	case Down:
		if gw.y < gw.height-1 {
			gw.y++
		}
	case Left:
		if gw.x > 0 {
			gw.x--
		}
	case Right:
		if gw.x < gw.width-1 {
			gw.x++
		}
	}

	return gw.x, gw.y, STEP_REWARD
}

// Reset returns the agent to the start position given at construction.
func (gw *GridWorld) Reset() {
	gw.x, gw.y = gw.x0, gw.y0
}

// Position returns the agent's current cell.
func (gw *GridWorld) Position() Position {
	return Position{X: gw.x, Y: gw.y}
}

// Start returns the (clamped) start position.
func (gw *GridWorld) Start() Position {
	return Position{X: gw.x0, Y: gw.y0}
}

// Dims returns the width and height of the grid.
func (gw *GridWorld) Dims() (width, height int) {
	return gw.width, gw.height
}

func (gw *GridWorld) CellA() Position { return gw.a }
func (gw *GridWorld) CellB() Position { return gw.b }

// Render writes the grid, one row per line, marking the agent with X and the special
// cells with A and B. The agent's mark takes precedence when it sits on A or B.
// If colorize is set the marks are wrapped in ansi color codes.
//
//	|X|A| |B| |
//	-----------
func (gw *GridWorld) Render(w io.Writer, colorize bool) error {
	au := aurora.NewAurora(colorize)
	sep := strings.Repeat("-", 2*gw.width+1)

	var sb strings.Builder
	for y := 0; y < gw.height; y++ {
		for x := 0; x < gw.width; x++ {
			sb.WriteString("|")
			switch (Position{X: x, Y: y}) {
			case gw.Position():
				sb.WriteString(au.Green("X").String())
			case gw.a:
				sb.WriteString(au.Yellow("A").String())
			case gw.b:
				sb.WriteString(au.Cyan("B").String())
			default:
				sb.WriteString(" ")
			}
		}
		sb.WriteString("|\n")
		sb.WriteString(sep)
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders the grid without color.
func (gw *GridWorld) String() string {
	var sb strings.Builder
	_ = gw.Render(&sb, false)
	return sb.String()
}

// Show the grid in the console, for visual reference.
func (gw *GridWorld) Show() {
	_ = gw.Render(os.Stdout, true)
}
