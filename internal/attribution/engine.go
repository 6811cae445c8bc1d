package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-lab/project-meridian/internal/core/journey"
	"github.com/meridian-lab/project-meridian/internal/core/markov"
)

const (
	defaultWorkerCount = 8
)

// ErrNoJourneys is returned when the engine is asked to attribute an empty
// journey set. There is no meaningful partial output, so this is fatal to
// the run (a configuration/data problem, not a recoverable edge case).
var ErrNoJourneys = errors.New("no journeys to attribute")

// Options controls throughput and solver behavior for one engine run.
type Options struct {
	WorkerCount         int
	SolverTolerance     float64
	SolverMaxIterations int
}

func (o Options) normalized() Options {
	n := o
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	return n
}

func (o Options) solverOptions() markov.SolverOptions {
	return markov.SolverOptions{
		Tolerance:     o.SolverTolerance,
		MaxIterations: o.SolverMaxIterations,
	}
}

// Run executes the full attribution pipeline over a fixed batch of journeys:
// graph construction, baseline absorption probability, per-channel removal
// effects, revenue allocation. It is a pure function of (journeys, options)
// apart from the report ID and timestamp. No state survives between runs.
func Run(ctx context.Context, journeys []journey.Journey, opts Options) (*Report, error) {
	opts = opts.normalized()

	if len(journeys) == 0 {
		return nil, ErrNoJourneys
	}

	start := time.Now()
	graph := markov.BuildGraph(journeys)
	baseline := markov.ConversionProbability(graph, opts.solverOptions())

	slog.Info("[Engine] Baseline model fitted",
		"journeys", len(journeys),
		"channels", len(graph.Channels()),
		"conversion_probability", baseline,
	)

	effects, err := markov.ComputeRemovalEffects(ctx, graph, baseline, opts.WorkerCount, opts.solverOptions())
	if err != nil {
		return nil, fmt.Errorf("compute removal effects: %w", err)
	}

	allocations := markov.AllocateRevenue(effects, journeys)

	// effects and allocations share index order (sorted by channel).
	channels := make([]ChannelAttribution, len(effects))
	for i, e := range effects {
		channels[i] = ChannelAttribution{
			Channel:          e.Channel,
			RemovalEffect:    e.Effect,
			NormalizedWeight: e.Weight,
			MarkovRevenue:    allocations[i].MarkovRevenue,
			LastTouchRevenue: allocations[i].LastTouchRevenue,
		}
	}

	converted := 0
	for _, j := range journeys {
		if j.Converted {
			converted++
		}
	}

	report := &Report{
		ID:                    uuid.NewString(),
		ComputedAt:            time.Now().UTC(),
		TotalConversionValue:  markov.TotalConversionValue(journeys),
		ConversionProbability: baseline,
		JourneyCount:          len(journeys),
		ConvertedCount:        converted,
		Channels:              channels,
	}

	slog.Info("[Engine] Attribution complete",
		"report_id", report.ID,
		"channels", len(channels),
		"total_conversion_value", report.TotalConversionValue,
		"elapsed", time.Since(start),
	)

	return report, nil
}
