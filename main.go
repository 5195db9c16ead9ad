/*
tdgrid estimates state values on a small grid world by TD(0), for a uniform random policy and then
for a few epsilon-greedy policies of decreasing epsilon, each greedy over the values estimated so far.
Two cells are special: every action taken from A jumps the agent four rows down for a reward of 10,
and every action taken from B jumps it two rows down for a reward of 5. Every other step costs 1.

	tdgrid evaluate            run the schedule on the console
	tdgrid serve --port 8080   run it while serving live views of the value table

Settings come from a {kind, def} yaml file, flags, and TDGRID_* environment variables (a .env file
is honored).
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"time"

	"tdgrid/reinforcement"
	"tdgrid/server"

	"github.com/joho/godotenv"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	envPrefix     = "TDGRID"
	statusPeriod  = 5 * time.Second
	defaultConfig = "./config.yaml"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd(viper.New()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flag values are read through settings, so that
// each may also be set by a TDGRID_ prefixed environment variable.
func newRootCmd(settings *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tdgrid",
		Short:        "TD(0) state-value estimation on a grid world with teleporting cells",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfig, "path of the {kind, def} yaml config; defaults are used if it does not exist")
	rootCmd.PersistentFlags().Bool("debug", false, "debug mode: check convergence every 10k updates and stop after 100k")
	rootCmd.PersistentFlags().Int64("seed", reinforcement.DEFAULT_SEED, "random seed, overrides the config's")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every action taken")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the evaluation schedule and print the value table after each pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(settings)
			if err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cfg)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation schedule while serving live views of it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(settings)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(settings.GetString("host"), settings.GetString("port"))
			return runServe(cmd.Context(), cfg, addr)
		},
	}
	serveCmd.Flags().String("host", "", "The host ip")
	serveCmd.Flags().String("port", "8080", "The host port")

	rootCmd.AddCommand(evaluateCmd, serveCmd)

	settings.SetEnvPrefix(envPrefix)
	settings.AutomaticEnv()
	_ = settings.BindPFlags(rootCmd.PersistentFlags())
	_ = settings.BindPFlags(serveCmd.Flags())

	return rootCmd
}

// loadConfig reads the config file, falling back to the defaults if it does not exist,
// and applies the flag and environment overrides.
func loadConfig(settings *viper.Viper) (cfg *reinforcement.TrainingConfig, err error) {
	path := settings.GetString("config")
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		log.Printf("no config at %s, using defaults", path)
		cfg = reinforcement.DefaultTrainingConfig()
	} else if cfg, err = reinforcement.FromYaml(path); err != nil {
		return nil, err
	}

	if settings.IsSet("seed") {
		cfg.Seed = settings.GetInt64("seed")
	}
	if settings.GetBool("verbose") {
		cfg.Verbose = true
	}
	if settings.GetBool("debug") {
		cfg.Convergence = reinforcement.ConvergenceConfig{
			Threshold:     reinforcement.DEFAULT_THRESHOLD,
			CheckInterval: 10_000,
			MaxIterations: 100_000,
		}
	}
	return cfg, nil
}

// appContext is cancelled on interrupt, and bounded by the config's training deadline.
func appContext(
	parent context.Context,
	cfg *reinforcement.TrainingConfig,
) (context.Context, context.CancelFunc, error) {
	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt)
	ctx, cancel, err := cfg.WithTrainingDeadline(sigCtx)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return ctx, func() {
		cancel()
		stop()
	}, nil
}

func runEvaluate(parent context.Context, cfg *reinforcement.TrainingConfig) error {
	ctx, cancel, err := appContext(parent, cfg)
	if err != nil {
		return err
	}
	defer cancel()

	status := &statusLine{}
	done := make(chan struct{})
	defer close(done)
	go status.printEvery(done, statusPeriod)

	report, err := reinforcement.Improve(ctx, cfg, status.update)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func runServe(parent context.Context, cfg *reinforcement.TrainingConfig, addr string) error {
	ctx, cancel, err := appContext(parent, cfg)
	if err != nil {
		return err
	}
	defer cancel()

	snapshots := make(chan reinforcement.Snapshot)
	srv, err := server.NewServer(ctx, addr, cfg.InitialSnapshot(), snapshots)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	group.Go(func() error {
		report, err := reinforcement.Improve(groupCtx, cfg, exportSnapshots(snapshots))
		if err != nil {
			return err
		}
		printReport(report)
		log.Println("training done, still serving; interrupt to exit")
		return nil
	})

	return group.Wait()
}

// exportSnapshots returns a progress func that hands checkpoint snapshots to the server,
// dropping them while it is busy.
func exportSnapshots(snapshots chan<- reinforcement.Snapshot) reinforcement.ProgressFunc {
	return func(_ context.Context, snap reinforcement.Snapshot) {
		select {
		case snapshots <- snap:
		default:
		}
	}
}

// statusLine holds the latest checkpoint for periodic console status.
type statusLine struct {
	mu   sync.Mutex
	snap *reinforcement.Snapshot
}

func (sl *statusLine) update(_ context.Context, snap reinforcement.Snapshot) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.snap = &snap
}

func (sl *statusLine) String() string {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.snap == nil {
		return "awaiting first checkpoint"
	}
	return fmt.Sprintf("pass %d, iteration %d, max_error %.4f", sl.snap.Pass, sl.snap.Iteration, sl.snap.MaxError)
}

func (sl *statusLine) printEvery(done <-chan struct{}, period time.Duration) {
	for range channerics.NewTicker(done, period) {
		log.Println(sl)
	}
}

func printReport(report *reinforcement.Report) {
	fmt.Println("pass  policy          epsilon  status                 updates   max_error")
	for _, pass := range report.Passes {
		fmt.Printf("%-5d %-15s %-8.3f %-22s %-9d %.4f\n",
			pass.Pass, pass.Policy, pass.Epsilon, pass.Result.Status, pass.Result.Iterations, pass.Result.MaxError)
	}
	if report.Values != nil {
		fmt.Println("final values:")
		reinforcement.ShowValues(report.Width, report.Height, report.Values)
	}
}
