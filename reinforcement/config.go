package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CONFIG_KIND is the only config kind understood by FromYaml.
const CONFIG_KIND = "tdEvaluation"

// ErrUnknownKind is returned for config files whose kind is not CONFIG_KIND.
var ErrUnknownKind = errors.New("unknown config kind")

// OuterConfig is the envelope of a config file: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes the grid, the learning parameters and the evaluation schedule
// outside of code. Viper lowercases every key it reads, hence the lowercase yaml tags;
// the config file itself may use any case.
type TrainingConfig struct {
	// HyperParams is a key-val list of params: alpha (learning rate), gamma (discount),
	// epsilon (exploration rate of the first greedy pass).
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// TrainingDeadline is a duration after which the run is cancelled, e.g. {duration: 10m}.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	Grid             GridConfig        `yaml:"grid"`
	Convergence      ConvergenceConfig `yaml:"convergence"`
	// ImprovementPasses is the number of epsilon-greedy passes after the random one.
	ImprovementPasses int   `yaml:"improvementpasses"`
	Seed              int64 `yaml:"seed"`
	Verbose           bool  `yaml:"verbose"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// GridConfig is the geometry of the grid world and the agent's start cell.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	X0     int `yaml:"x0"`
	Y0     int `yaml:"y0"`
}

// ConvergenceConfig mirrors EvaluatorConfig's convergence fields.
type ConvergenceConfig struct {
	Threshold     float64 `yaml:"threshold"`
	CheckInterval int     `yaml:"checkinterval"`
	MaxIterations int     `yaml:"maxiterations"`
}

// Hyperparameter defaults.
const (
	DEFAULT_ALPHA   = 0.0001
	DEFAULT_GAMMA   = 0.9
	DEFAULT_EPSILON = 0.3

	DEFAULT_IMPROVEMENT_PASSES = 3
	DEFAULT_SEED               = 1
)

// DefaultTrainingConfig returns the config used when no file is given: a 5x5 grid
// starting at (0,0), default convergence settings and three improvement passes.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: "alpha", Val: DEFAULT_ALPHA},
			{Key: "gamma", Val: DEFAULT_GAMMA},
			{Key: "epsilon", Val: DEFAULT_EPSILON},
		},
		TrainingDeadline: map[string]string{},
		Grid: GridConfig{
			Width:  5,
			Height: 5,
		},
		Convergence: ConvergenceConfig{
			Threshold:     DEFAULT_THRESHOLD,
			CheckInterval: DEFAULT_CHECK_INTERVAL,
			MaxIterations: DEFAULT_MAX_ITERATIONS,
		},
		ImprovementPasses: DEFAULT_IMPROVEMENT_PASSES,
		Seed:              DEFAULT_SEED,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

func (cfg *TrainingConfig) Alpha() float64 {
	return cfg.GetHyperParamOrDefault("alpha", DEFAULT_ALPHA)
}

func (cfg *TrainingConfig) Gamma() float64 {
	return cfg.GetHyperParamOrDefault("gamma", DEFAULT_GAMMA)
}

func (cfg *TrainingConfig) Epsilon() float64 {
	return cfg.GetHyperParamOrDefault("epsilon", DEFAULT_EPSILON)
}

// EvaluatorConfig returns the evaluator settings described by the config.
func (cfg *TrainingConfig) EvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Threshold:     cfg.Convergence.Threshold,
		CheckInterval: cfg.Convergence.CheckInterval,
		MaxIterations: cfg.Convergence.MaxIterations,
		Verbose:       cfg.Verbose,
	}
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a {kind, def} config file. Fields missing from def keep their defaults.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if outerConfig.Kind != CONFIG_KIND {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, outerConfig.Kind)
	}

	// Round trip the def through yaml so the inner config decodes by its yaml tags.
	var defYaml []byte
	if defYaml, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("encode config def: %w", err)
	}

	innerConfig := DefaultTrainingConfig()
	if err = yaml.Unmarshal(defYaml, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config def: %w", err)
	}

	return innerConfig, nil
}
