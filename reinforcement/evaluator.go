package reinforcement

import (
	"context"
	"log"
	"math"

	. "tdgrid/grid_world"
)

// Environment is the part of the grid world the evaluator drives.
type Environment interface {
	Act(action Action) (x, y int, reward float64)
	Position() Position
	Dims() (width, height int)
	CellA() Position
	CellB() Position
}

// EvaluatorConfig holds the convergence parameters of an evaluation run.
type EvaluatorConfig struct {
	// Threshold is the max absolute value change between checkpoints at or below which
	// the estimate is considered converged. A negative threshold never converges.
	Threshold float64
	// CheckInterval is the number of updates between convergence checkpoints.
	CheckInterval int
	// MaxIterations caps the number of updates of a run.
	MaxIterations int
	// Verbose logs every action taken.
	Verbose bool
}

const (
	DEFAULT_THRESHOLD      = 0.1
	DEFAULT_CHECK_INTERVAL = 1_000_000
	DEFAULT_MAX_ITERATIONS = 10_000_000
)

// DefaultEvaluatorConfig checks for convergence every million updates and gives up after ten million.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Threshold:     DEFAULT_THRESHOLD,
		CheckInterval: DEFAULT_CHECK_INTERVAL,
		MaxIterations: DEFAULT_MAX_ITERATIONS,
	}
}

// Status is the lifecycle state of an Evaluator.
type Status int

const (
	Idle Status = iota
	Running
	Converged
	IterationCapReached
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case IterationCapReached:
		return "iteration_cap_reached"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Step is a single TD(0) time step: in State take Action, observe Reward and Successor.
type Step struct {
	State     Position
	Successor Position
	Action    Action
	Reward    float64
}

// Result summarizes a finished evaluation run.
type Result struct {
	Status      Status
	Iterations  int
	Checkpoints int
	// MaxError is the change measured at the last checkpoint; +Inf if none was reached.
	MaxError float64
}

// Snapshot is the state of a run at a checkpoint, published to progress listeners.
type Snapshot struct {
	Pass          int
	Iteration     int
	MaxError      float64
	Width, Height int
	Agent         Position
	CellA, CellB  Position
	// Values is an x-major copy of the value table.
	Values []float64
}

// At returns the value of cell (x,y) in the snapshot.
func (s Snapshot) At(x, y int) float64 {
	return s.Values[x*s.Height+y]
}

// ProgressFunc is a callback by which the evaluator lends progress details at each
// checkpoint. It is synchronous and should complete quickly.
type ProgressFunc func(context.Context, Snapshot)

// Evaluator estimates the state-value function of a policy by TD(0) along a single,
// continuous trajectory through the environment. It owns the value table; the policy
// receives a read-only view of it. An Evaluator is not safe for concurrent use.
type Evaluator struct {
	env      Environment
	policy   Policy
	values   *ValueTable
	config   EvaluatorConfig
	status   Status
	progress ProgressFunc
}

// NewEvaluator creates a zeroed value table sized to env and builds the policy over it.
// Non-positive CheckInterval or MaxIterations fall back to their defaults.
func NewEvaluator(env Environment, newPolicy PolicyFactory, config EvaluatorConfig) *Evaluator {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DEFAULT_CHECK_INTERVAL
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DEFAULT_MAX_ITERATIONS
	}

	width, height := env.Dims()
	values := NewValueTable(width, height)
	return &Evaluator{
		env:    env,
		policy: newPolicy(values),
		values: values,
		config: config,
		status: Idle,
	}
}

// WithProgress sets the checkpoint callback.
func (ev *Evaluator) WithProgress(progress ProgressFunc) *Evaluator {
	ev.progress = progress
	return ev
}

// Values returns the evaluator's live value table.
func (ev *Evaluator) Values() *ValueTable {
	return ev.values
}

func (ev *Evaluator) Policy() Policy {
	return ev.policy
}

func (ev *Evaluator) Config() EvaluatorConfig {
	return ev.config
}

func (ev *Evaluator) Status() Status {
	return ev.status
}

// OneUpdate takes one action from the environment's current cell and applies the TD(0) update
//
//	V(s) <- V(s) + alpha * (R + gamma*V(s') - V(s))
//
// The environment is left in s'; the next update continues from there.
func (ev *Evaluator) OneUpdate(alpha, gamma float64) Step {
	state := ev.env.Position()
	action := ev.policy.GetAction(state.X, state.Y)
	if ev.config.Verbose {
		log.Printf("action: %s", action)
	}

	x, y, reward := ev.env.Act(action)
	val := ev.values.At(state.X, state.Y)
	delta := alpha * (reward + gamma*ev.values.At(x, y) - val)
	ev.values.Add(state.X, state.Y, delta)

	return Step{
		State:     state,
		Successor: Position{X: x, Y: y},
		Action:    action,
		Reward:    reward,
	}
}

// Evaluate runs OneUpdate until the estimate converges or MaxIterations updates have been
// applied. Convergence is only checked every CheckInterval updates, against the table as
// it stood at the previous checkpoint (initially the table at the start of the run), so a
// run can go well past the point where it actually converged.
// The context is also only checked at checkpoints, and once more when the cap is reached;
// cancellation ends the run as Cancelled.
func (ev *Evaluator) Evaluate(ctx context.Context, alpha, gamma float64) Result {
	ev.status = Running
	result := Result{MaxError: math.Inf(1)}
	prev := ev.values.Values()
	counted := 0

	for result.Iterations < ev.config.MaxIterations {
		ev.OneUpdate(alpha, gamma)
		result.Iterations++
		if result.Iterations%ev.config.CheckInterval != 0 {
			continue
		}

		cur := ev.values.Values()
		result.MaxError = MaxAbsDiff(prev, cur)
		result.Checkpoints++
		prev = cur

		evaluatorUpdates.Add(float64(result.Iterations - counted))
		counted = result.Iterations
		evaluatorCheckpoints.Inc()
		evaluatorMaxError.Set(result.MaxError)
		log.Printf("max_error: %.2f", result.MaxError)

		if ev.progress != nil {
			ev.progress(ctx, ev.snapshot(result, cur))
		}

		if result.MaxError <= ev.config.Threshold {
			ev.status = Converged
			break
		}
		if ctx.Err() != nil {
			ev.status = Cancelled
			break
		}
	}

	evaluatorUpdates.Add(float64(result.Iterations - counted))

	// A cap below the check interval ends the run before any checkpoint saw ctx.
	if ev.status == Running && ctx.Err() != nil {
		ev.status = Cancelled
	}
	if ev.status == Running {
		ev.status = IterationCapReached
	}
	result.Status = ev.status
	evaluatorRuns.WithLabelValues(ev.status.String()).Inc()
	return result
}

func (ev *Evaluator) snapshot(result Result, values []float64) Snapshot {
	width, height := ev.values.Dims()
	return Snapshot{
		Iteration: result.Iterations,
		MaxError:  result.MaxError,
		Width:     width,
		Height:    height,
		Agent:     ev.env.Position(),
		CellA:     ev.env.CellA(),
		CellB:     ev.env.CellB(),
		Values:    values,
	}
}
