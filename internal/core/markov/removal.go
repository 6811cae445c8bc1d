package markov

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RemovalEffect is one channel's what-if result: how much the chain's
// conversion probability drops when that channel stops nudging users along.
type RemovalEffect struct {
	Channel             string  `json:"channel"`
	BaselineProbability float64 `json:"baseline_conversion_probability"`
	ReducedProbability  float64 `json:"reduced_conversion_probability"`
	Effect              float64 `json:"removal_effect"`
	Weight              float64 `json:"normalized_weight"`
}

// ComputeRemovalEffects scores every real channel in the graph. Each
// channel's computation depends only on the shared immutable baseline graph,
// so the per-channel work fans out across an errgroup bounded by workers.
//
// Effects are (P0-P')/P0, reported as 0 when P0 is 0 (a defined fallback,
// not an error). Weights are effects renormalized to sum to 1; when no
// channel has any measurable effect the weight is distributed uniformly.
// Results are sorted by channel name and therefore deterministic.
func ComputeRemovalEffects(
	ctx context.Context,
	g *Graph,
	baseline float64,
	workers int,
	opts SolverOptions,
) ([]RemovalEffect, error) {
	channels := g.Channels()
	if len(channels) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}

	effects := make([]RemovalEffect, len(channels))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, ch := range channels {
		i, ch := i, ch
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			reduced := ConversionProbability(g.WithChannelRemoved(ch), opts)

			effect := 0.0
			if baseline > 0 {
				effect = (baseline - reduced) / baseline
			}
			// Rerouting a row to (null) can never raise conversion
			// probability; a negative here is floating-point noise.
			if effect < 0 {
				effect = 0
			}

			effects[i] = RemovalEffect{
				Channel:             ch,
				BaselineProbability: baseline,
				ReducedProbability:  reduced,
				Effect:              effect,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	normalizeWeights(effects)
	return effects, nil
}

func normalizeWeights(effects []RemovalEffect) {
	total := 0.0
	for _, e := range effects {
		total += e.Effect
	}

	if total > 0 {
		for i := range effects {
			effects[i].Weight = effects[i].Effect / total
		}
		return
	}

	// No channel moves the needle (e.g. zero baseline): uniform split across
	// the channels that are present, so downstream allocation stays defined.
	uniform := 1 / float64(len(effects))
	for i := range effects {
		effects[i].Weight = uniform
	}
}
