package reinforcement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluatorUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tdgrid_evaluator_updates_total",
		Help: "Total TD(0) updates applied, counted at each convergence checkpoint",
	})

	evaluatorCheckpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tdgrid_evaluator_checkpoints_total",
		Help: "Total convergence checkpoints evaluated",
	})

	evaluatorMaxError = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tdgrid_evaluator_max_error",
		Help: "Max absolute value change between the two most recent checkpoints",
	})

	evaluatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdgrid_evaluator_runs_total",
		Help: "Completed evaluation runs by terminal status",
	}, []string{"status"})
)
