package markov

import (
	"context"
	"testing"

	"github.com/meridian-lab/project-meridian/internal/core/journey"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTotalConversionValue(t *testing.T) {
	journeys := []journey.Journey{
		converting([]string{"a"}, 100),
		converting([]string{"b"}, 49.5),
		nonConverting([]string{"c"}),
	}

	require.True(t, TotalConversionValue(journeys).Equal(decimal.NewFromFloat(149.5)))
}

func TestAllocateRevenue_EvenSplit(t *testing.T) {
	journeys := []journey.Journey{
		converting([]string{"facebook"}, 100),
		converting([]string{"direct"}, 100),
	}
	g := BuildGraph(journeys)
	baseline := ConversionProbability(g, SolverOptions{})
	effects, err := ComputeRemovalEffects(context.Background(), g, baseline, 2, SolverOptions{})
	require.NoError(t, err)

	allocations := AllocateRevenue(effects, journeys)
	require.Len(t, allocations, 2)

	for _, a := range allocations {
		require.True(t, a.MarkovRevenue.Equal(decimal.NewFromInt(100)),
			"channel %s got %s", a.Channel, a.MarkovRevenue)
		require.True(t, a.LastTouchRevenue.Equal(decimal.NewFromInt(100)))
	}
}

func TestAllocateRevenue_AssistChannelVsLastTouch(t *testing.T) {
	// facebook only ever assists; last-touch gives it nothing while the
	// Markov model pays it for the conversions it enabled.
	journeys := append(
		repeat(converting([]string{"facebook", "direct"}, 100), 3),
		nonConverting([]string{"direct"}),
	)
	g := BuildGraph(journeys)
	baseline := ConversionProbability(g, SolverOptions{})
	effects, err := ComputeRemovalEffects(context.Background(), g, baseline, 2, SolverOptions{})
	require.NoError(t, err)

	allocations := AllocateRevenue(effects, journeys)
	byChannel := make(map[string]Allocation)
	for _, a := range allocations {
		byChannel[a.Channel] = a
	}

	require.True(t, byChannel["facebook"].LastTouchRevenue.IsZero())
	require.True(t, byChannel["direct"].LastTouchRevenue.Equal(decimal.NewFromInt(300)))

	require.True(t, byChannel["facebook"].MarkovRevenue.IsPositive(),
		"assist channel must receive markov credit, got %s", byChannel["facebook"].MarkovRevenue)

	// 300 split 3:4 across facebook:direct.
	expectedFacebook := decimal.NewFromFloat(300.0 * 3 / 7)
	require.True(t, byChannel["facebook"].MarkovRevenue.Sub(expectedFacebook).Abs().
		LessThan(decimal.NewFromFloat(0.01)),
		"facebook markov revenue %s, expected about %s", byChannel["facebook"].MarkovRevenue, expectedFacebook)
}

func TestAllocateRevenue_BothColumnsSumToTotal(t *testing.T) {
	journeys := []journey.Journey{
		converting([]string{"a", "b", "c"}, 33.33),
		converting([]string{"b", "c", "b"}, 66.67),
		converting([]string{"c"}, 10),
		nonConverting([]string{"a", "a"}),
	}
	g := BuildGraph(journeys)
	baseline := ConversionProbability(g, SolverOptions{})
	effects, err := ComputeRemovalEffects(context.Background(), g, baseline, 3, SolverOptions{})
	require.NoError(t, err)

	allocations := AllocateRevenue(effects, journeys)
	total := TotalConversionValue(journeys)

	markovSum := decimal.Zero
	lastTouchSum := decimal.Zero
	for _, a := range allocations {
		markovSum = markovSum.Add(a.MarkovRevenue)
		lastTouchSum = lastTouchSum.Add(a.LastTouchRevenue)
	}

	require.True(t, markovSum.Equal(total), "markov sum %s != total %s", markovSum, total)
	require.True(t, lastTouchSum.Equal(total), "last-touch sum %s != total %s", lastTouchSum, total)
}

func TestAllocateRevenue_NoEffectsNoRows(t *testing.T) {
	require.Nil(t, AllocateRevenue(nil, []journey.Journey{converting([]string{"a"}, 10)}))
}

func TestAllocateRevenue_OnlyGraphChannelsGetRows(t *testing.T) {
	// A channel that appears in zero journeys is not in the graph and must
	// not produce a spurious zero-value row.
	journeys := []journey.Journey{
		converting([]string{"facebook"}, 50),
		nonConverting([]string{"tiktok"}),
	}
	g := BuildGraph(journeys)
	baseline := ConversionProbability(g, SolverOptions{})
	effects, err := ComputeRemovalEffects(context.Background(), g, baseline, 2, SolverOptions{})
	require.NoError(t, err)

	allocations := AllocateRevenue(effects, journeys)
	require.Len(t, allocations, 2)
	for _, a := range allocations {
		require.Contains(t, []string{"facebook", "tiktok"}, a.Channel)
	}
}
