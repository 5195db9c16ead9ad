package reinforcement

import (
	"context"
	"math"
	"math/rand"
	"testing"

	. "tdgrid/grid_world"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func smallConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Threshold:     -1,
		CheckInterval: 100,
		MaxIterations: 1000,
	}
}

func TestOneUpdate(t *testing.T) {
	Convey("Given an agent starting on A", t, func() {
		env := NewGridWorld(5, 5, 1, 0)
		ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), smallConfig())

		Convey("One update moves V(A) toward the teleport reward", func() {
			step := ev.OneUpdate(0.1, 0.9)
			So(step.State, ShouldResemble, Position{X: 1, Y: 0})
			So(step.Successor, ShouldResemble, Position{X: 1, Y: 4})
			So(step.Reward, ShouldEqual, 10)
			So(ev.Values().At(1, 0), ShouldAlmostEqual, 1.0)
			So(env.Position(), ShouldResemble, Position{X: 1, Y: 4})
		})

		Convey("Only the departed cell is updated", func() {
			ev.Values().Set(1, 4, 2)
			ev.OneUpdate(0.5, 1.0)
			So(ev.Values().At(1, 0), ShouldAlmostEqual, 0.5*(10+2))
			So(ev.Values().At(1, 4), ShouldEqual, 2)
		})

		Convey("A zero learning rate changes nothing", func() {
			for i := 0; i < 100; i++ {
				ev.OneUpdate(0, 0.9)
			}
			So(MaxAbsDiff(ev.Values().Values(), make([]float64, 25)), ShouldEqual, 0)
		})
	})

	Convey("Given an agent in an ordinary cell", t, func() {
		env := NewGridWorld(5, 5, 0, 4)
		ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(2))), smallConfig())

		Convey("The start is clamped off the last row, and a plain move costs one step", func() {
			step := ev.OneUpdate(1.0, 0.0)
			So(step.State, ShouldResemble, Position{X: 0, Y: 3})
			So(step.Reward, ShouldEqual, STEP_REWARD)
			So(ev.Values().At(step.State.X, step.State.Y), ShouldEqual, -1)
			So(ev.Values().At(0, 4), ShouldEqual, 0)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given a small evaluation schedule", t, func() {
		env := NewGridWorld(5, 5, 0, 0)
		config := smallConfig()

		Convey("A run that never converges stops at the iteration cap", func() {
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			So(ev.Status(), ShouldEqual, Idle)

			result := ev.Evaluate(context.Background(), 0.1, 0.9)
			So(result.Status, ShouldEqual, IterationCapReached)
			So(ev.Status(), ShouldEqual, IterationCapReached)
			So(result.Iterations, ShouldEqual, 1000)
			So(result.Checkpoints, ShouldEqual, 10)
			So(result.MaxError, ShouldBeGreaterThan, 0)
		})

		Convey("A table that stops changing converges at the first checkpoint", func() {
			config.Threshold = DEFAULT_THRESHOLD
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(context.Background(), 0, 0.9)
			So(result.Status, ShouldEqual, Converged)
			So(result.Iterations, ShouldEqual, 100)
			So(result.Checkpoints, ShouldEqual, 1)
			So(result.MaxError, ShouldEqual, 0)
		})

		Convey("A cap below the check interval ends without a checkpoint", func() {
			config.MaxIterations = 50
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(context.Background(), 0.1, 0.9)
			So(result.Status, ShouldEqual, IterationCapReached)
			So(result.Iterations, ShouldEqual, 50)
			So(result.Checkpoints, ShouldEqual, 0)
			So(math.IsInf(result.MaxError, 1), ShouldBeTrue)
		})

		Convey("Updates past the last checkpoint are counted", func() {
			updates := testutil.ToFloat64(evaluatorUpdates)
			config.MaxIterations = 250
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(context.Background(), 0.1, 0.9)
			So(result.Iterations, ShouldEqual, 250)
			So(result.Checkpoints, ShouldEqual, 2)
			So(testutil.ToFloat64(evaluatorUpdates)-updates, ShouldEqual, 250)

			config.MaxIterations = 50
			ev = NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			ev.Evaluate(context.Background(), 0.1, 0.9)
			So(testutil.ToFloat64(evaluatorUpdates)-updates, ShouldEqual, 300)
		})

		Convey("Cancellation is observed when the cap comes before any checkpoint", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			config.MaxIterations = 50
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(ctx, 0.1, 0.9)
			So(result.Status, ShouldEqual, Cancelled)
			So(ev.Status(), ShouldEqual, Cancelled)
			So(result.Iterations, ShouldEqual, 50)
			So(result.Checkpoints, ShouldEqual, 0)
		})

		Convey("Cancellation is observed at the next checkpoint", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(ctx, 0.1, 0.9)
			So(result.Status, ShouldEqual, Cancelled)
			So(result.Iterations, ShouldEqual, 100)
		})

		Convey("Progress is reported once per checkpoint", func() {
			var snaps []Snapshot
			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			ev.WithProgress(func(_ context.Context, snap Snapshot) {
				snaps = append(snaps, snap)
			})
			ev.Evaluate(context.Background(), 0.1, 0.9)

			So(len(snaps), ShouldEqual, 10)
			for i, snap := range snaps {
				So(snap.Iteration, ShouldEqual, (i+1)*100)
				So(snap.Width, ShouldEqual, 5)
				So(snap.Height, ShouldEqual, 5)
				So(snap.CellA, ShouldResemble, CellA)
				So(snap.CellB, ShouldResemble, CellB)
				So(len(snap.Values), ShouldEqual, 25)
			}
			last := snaps[len(snaps)-1]
			So(last.Values, ShouldResemble, ev.Values().Values())
			So(last.Agent, ShouldResemble, env.Position())
		})

		Convey("Checkpoints are exported as metrics", func() {
			checkpoints := testutil.ToFloat64(evaluatorCheckpoints)
			updates := testutil.ToFloat64(evaluatorUpdates)
			capped := testutil.ToFloat64(evaluatorRuns.WithLabelValues(IterationCapReached.String()))

			ev := NewEvaluator(env, RandomPolicyFactory(rand.New(rand.NewSource(1))), config)
			result := ev.Evaluate(context.Background(), 0.1, 0.9)

			So(testutil.ToFloat64(evaluatorCheckpoints)-checkpoints, ShouldEqual, 10)
			So(testutil.ToFloat64(evaluatorUpdates)-updates, ShouldEqual, 1000)
			So(testutil.ToFloat64(evaluatorRuns.WithLabelValues(IterationCapReached.String()))-capped, ShouldEqual, 1)
			So(testutil.ToFloat64(evaluatorMaxError), ShouldEqual, result.MaxError)
		})
	})

	Convey("Non-positive schedule settings fall back to the defaults", t, func() {
		env := NewGridWorld(5, 5, 0, 0)
		ev := NewEvaluator(env, RandomPolicyFactory(nil), EvaluatorConfig{Threshold: 0.5})
		So(ev.Config().CheckInterval, ShouldEqual, DEFAULT_CHECK_INTERVAL)
		So(ev.Config().MaxIterations, ShouldEqual, DEFAULT_MAX_ITERATIONS)
		So(ev.Config().Threshold, ShouldEqual, 0.5)
	})

	Convey("An epsilon-greedy policy reads the evaluator's own table", t, func() {
		env := NewGridWorld(5, 5, 2, 2)
		ev := NewEvaluator(env, EpsilonGreedyPolicyFactory(0, rand.New(rand.NewSource(1))), smallConfig())
		ev.Values().Set(3, 2, 5)
		step := ev.OneUpdate(0.1, 0.9)
		So(step.Action, ShouldEqual, Right)
		So(step.Successor, ShouldResemble, Position{X: 3, Y: 2})
	})
}
