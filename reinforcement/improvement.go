package reinforcement

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	. "tdgrid/grid_world"
)

// PassResult is the outcome of one evaluation pass of the improvement schedule.
type PassResult struct {
	Pass    int
	Policy  string
	Epsilon float64
	Result  Result
}

// Report is the outcome of the full improvement schedule.
type Report struct {
	Passes        []PassResult
	Width, Height int
	// Values is an x-major copy of the final value table.
	Values []float64
}

// Improve approximates policy improvement by repeated evaluation. Pass 0 evaluates the
// uniform random policy; passes 1..ImprovementPasses evaluate epsilon-greedy policies with
// epsilon/pass, after returning the agent to its start cell. Each pass gets a new evaluator
// whose table starts from the previous pass's final values, rather than from zero, and
// whose greedy policy reads that table as it is updated. Only pass 0 starts from a zeroed
// table.
// Cancelling ctx stops the schedule after the current pass's next checkpoint; the report
// holds the passes completed so far.
func Improve(
	ctx context.Context,
	cfg *TrainingConfig,
	progressFn ProgressFunc,
) (*Report, error) {
	env := NewGridWorld(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.X0, cfg.Grid.Y0)
	width, height := env.Dims()
	rng := rand.New(rand.NewSource(cfg.Seed))

	alpha, gamma, epsilon := cfg.Alpha(), cfg.Gamma(), cfg.Epsilon()
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha %v: must be in (0, 1]", alpha)
	}
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("gamma %v: must be in [0, 1]", gamma)
	}
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("epsilon %v: must be in [0, 1]", epsilon)
	}

	report := &Report{
		Width:  width,
		Height: height,
	}
	var warm []float64
	for pass := 0; pass <= cfg.ImprovementPasses; pass++ {
		if ctx.Err() != nil {
			break
		}

		name, eps := "random", 1.0
		factory := RandomPolicyFactory(rng)
		if pass > 0 {
			env.Reset()
			name, eps = "epsilon-greedy", epsilon/float64(pass)
			factory = EpsilonGreedyPolicyFactory(eps, rng)
		}

		ev := NewEvaluator(env, factory, cfg.EvaluatorConfig())
		if warm != nil {
			if err := ev.Values().Load(warm); err != nil {
				return nil, err
			}
		}
		if progressFn != nil {
			ev.WithProgress(func(ctx context.Context, snap Snapshot) {
				snap.Pass = pass
				progressFn(ctx, snap)
			})
		}

		log.Printf("pass %d: evaluating %s policy (epsilon=%.3f)", pass, name, eps)
		result := ev.Evaluate(ctx, alpha, gamma)
		warm = ev.Values().Values()
		log.Printf("pass %d: %s after %d updates (max_error=%.2f)", pass, result.Status, result.Iterations, result.MaxError)
		ShowValues(width, height, warm)

		report.Passes = append(report.Passes, PassResult{
			Pass:    pass,
			Policy:  name,
			Epsilon: eps,
			Result:  result,
		})
		report.Values = warm

		if result.Status == Cancelled {
			break
		}
	}

	return report, nil
}

// InitialSnapshot describes the grid the config's schedule will start from, before any update.
func (cfg *TrainingConfig) InitialSnapshot() Snapshot {
	env := NewGridWorld(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.X0, cfg.Grid.Y0)
	width, height := env.Dims()
	return Snapshot{
		Width:  width,
		Height: height,
		Agent:  env.Position(),
		CellA:  env.CellA(),
		CellB:  env.CellB(),
		Values: make([]float64, width*height),
	}
}
