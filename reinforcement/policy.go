package reinforcement

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	. "tdgrid/grid_world"
)

// Policy selects the agent's next action from its current cell.
type Policy interface {
	GetAction(x, y int) Action
}

// PolicyFactory builds a policy over the live value table of the evaluator that owns it.
// Policies that ignore values may ignore the reader.
type PolicyFactory func(values ValueReader) Policy

// ErrNoEligibleAction is raised (by panic) when the greedy lookahead finds no legal move.
// The minimum grid size makes this unreachable for tables built by an Evaluator.
var ErrNoEligibleAction = errors.New("no eligible greedy action")

// newRand returns rng, or a time-seeded source if rng is nil.
func newRand(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rng
}

func randomAction(rng *rand.Rand) Action {
	return Actions[rng.Intn(NUM_ACTIONS)]
}

// RandomPolicy selects actions uniformly at random, whatever the cell.
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy returns a uniform random policy drawing from rng.
// Pass a seeded source for reproducible runs; nil falls back to a time-seeded one.
func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{rng: newRand(rng)}
}

func (p *RandomPolicy) GetAction(_, _ int) Action {
	return randomAction(p.rng)
}

// RandomPolicyFactory returns a factory for uniform random policies sharing rng.
func RandomPolicyFactory(rng *rand.Rand) PolicyFactory {
	return func(ValueReader) Policy {
		return NewRandomPolicy(rng)
	}
}

// EpsilonGreedyPolicy explores with probability epsilon and otherwise moves to the
// best-valued neighbor, per a one step lookahead on the value table. The table is read,
// never written, and the environment is never consulted.
type EpsilonGreedyPolicy struct {
	values  ValueReader
	epsilon float64
	rng     *rand.Rand
}

// NewEpsilonGreedyPolicy returns an epsilon-greedy policy over values. values must be the
// live table of the evaluator, not a copy, so that the policy tracks the current estimates.
func NewEpsilonGreedyPolicy(values ValueReader, epsilon float64, rng *rand.Rand) *EpsilonGreedyPolicy {
	return &EpsilonGreedyPolicy{
		values:  values,
		epsilon: epsilon,
		rng:     newRand(rng),
	}
}

// EpsilonGreedyPolicyFactory returns a factory for epsilon-greedy policies sharing rng.
func EpsilonGreedyPolicyFactory(epsilon float64, rng *rand.Rand) PolicyFactory {
	return func(values ValueReader) Policy {
		return NewEpsilonGreedyPolicy(values, epsilon, rng)
	}
}

func (p *EpsilonGreedyPolicy) Epsilon() float64 {
	return p.epsilon
}

func (p *EpsilonGreedyPolicy) GetAction(x, y int) Action {
	if p.rng.Float64() < p.epsilon {
		// Exploration: do something random
		return randomAction(p.rng)
	}
	// Exploitation: move toward the max-valued neighbor
	return p.greedyAction(x, y)
}

type candidate struct {
	action Action
	value  float64
}

// greedyAction returns one of the actions whose neighbor holds the maximum value among
// neighbors reachable without hitting the grid boundary. Ties are broken uniformly at
// random; a tie requires exact float equality.
func (p *EpsilonGreedyPolicy) greedyAction(x, y int) Action {
	width, height := p.values.Dims()

	candidates := make([]candidate, 0, NUM_ACTIONS)
	if y > 0 {
		candidates = append(candidates, candidate{Up, p.values.At(x, y-1)})
	}
	if y < height-1 {
		candidates = append(candidates, candidate{Down, p.values.At(x, y+1)})
	}
	if x > 0 {
		candidates = append(candidates, candidate{Left, p.values.At(x-1, y)})
	}
	if x < width-1 {
		candidates = append(candidates, candidate{Right, p.values.At(x+1, y)})
	}
	if len(candidates) == 0 {
		panic(fmt.Errorf("%w: cell (%d,%d) of a %dx%d table", ErrNoEligibleAction, x, y, width, height))
	}

	maxVal := math.Inf(-1)
	for _, c := range candidates {
		maxVal = math.Max(maxVal, c.value)
	}

	best := make([]Action, 0, len(candidates))
	for _, c := range candidates {
		if c.value == maxVal {
			best = append(best, c.action)
		}
	}

	return best[p.rng.Intn(len(best))]
}
