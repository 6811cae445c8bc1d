// Package markov implements the attribution model core: a first-order
// absorbing Markov chain estimated from observed journeys, the absorption
// solver, per-channel removal effects, and revenue allocation.
package markov

import (
	"sort"

	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/meridian-lab/project-meridian/internal/core/journey"
)

// Transition is one ordered (source, destination) state pair.
type Transition struct {
	From string
	To   string
}

// Graph is the estimated transition structure of the chain. It is built once
// by BuildGraph and is read-only afterwards: every derivation (removing a
// channel) allocates a fresh Graph, so concurrent readers never need locks.
//
// Absorbing states ((conversion), (null)) have an implicit self-loop of
// probability 1 and carry no stored outgoing edges.
type Graph struct {
	counts    map[Transition]int64
	probs     map[Transition]float64
	channels  []string // sorted real channels observed in any journey
	transient []string // (start) followed by channels; the solver's row order
}

// BuildGraph folds all journeys into transition counts and derives the
// row-stochastic probability rows for every transient state.
func BuildGraph(journeys []journey.Journey) *Graph {
	counts := make(map[Transition]int64)
	channelSet := make(map[string]struct{})

	for _, j := range journeys {
		states := j.States()
		for i := 0; i+1 < len(states); i++ {
			counts[Transition{From: states[i], To: states[i+1]}]++
		}
		for _, s := range j.Path {
			channelSet[s] = struct{}{}
		}
	}

	channels := make([]string, 0, len(channelSet))
	for c := range channelSet {
		channels = append(channels, c)
	}
	sort.Strings(channels)

	g := &Graph{
		counts:    counts,
		channels:  channels,
		transient: append([]string{channel.Start}, channels...),
	}
	g.probs = deriveProbabilities(counts, g.transient)
	return g
}

// deriveProbabilities turns counts into per-row distributions. A transient
// state with zero outgoing count gets a full-mass edge to (null) so every
// transient state is guaranteed a path to absorption.
func deriveProbabilities(counts map[Transition]int64, transient []string) map[Transition]float64 {
	totals := make(map[string]int64, len(transient))
	for tr, c := range counts {
		totals[tr.From] += c
	}

	probs := make(map[Transition]float64, len(counts))
	for _, s := range transient {
		total := totals[s]
		if total == 0 {
			probs[Transition{From: s, To: channel.Null}] = 1
			continue
		}
		for tr, c := range counts {
			if tr.From == s {
				probs[tr] = float64(c) / float64(total)
			}
		}
	}
	return probs
}

// Channels returns the sorted real channels present in the graph.
func (g *Graph) Channels() []string {
	out := make([]string, len(g.channels))
	copy(out, g.channels)
	return out
}

// TransientStates returns the solver's row order: (start), then channels.
func (g *Graph) TransientStates() []string {
	out := make([]string, len(g.transient))
	copy(out, g.transient)
	return out
}

// Count returns the observed transition count for (from, to).
func (g *Graph) Count(from, to string) int64 {
	return g.counts[Transition{From: from, To: to}]
}

// Prob returns the estimated transition probability for (from, to).
// Absorbing states self-loop with probability 1.
func (g *Graph) Prob(from, to string) float64 {
	if (from == channel.Conversion || from == channel.Null) && from == to {
		return 1
	}
	return g.probs[Transition{From: from, To: to}]
}

// Row returns the outgoing probability distribution of a transient state.
func (g *Graph) Row(from string) map[string]float64 {
	row := make(map[string]float64)
	for tr, p := range g.probs {
		if tr.From == from {
			row[tr.To] = p
		}
	}
	return row
}

// WithChannelRemoved derives a new graph in which the given channel no
// longer nudges anyone along: its entire outgoing mass is rerouted to
// (null). All other rows are unchanged, edges into the channel included:
// users still land there, they just go nowhere afterwards.
func (g *Graph) WithChannelRemoved(removed string) *Graph {
	counts := make(map[Transition]int64, len(g.counts))
	var removedOut int64
	for tr, c := range g.counts {
		if tr.From == removed {
			removedOut += c
			continue
		}
		counts[tr] = c
	}
	if removedOut > 0 {
		counts[Transition{From: removed, To: channel.Null}] = removedOut
	}

	derived := &Graph{
		counts:    counts,
		channels:  g.channels,
		transient: g.transient,
	}
	derived.probs = deriveProbabilities(counts, derived.transient)
	return derived
}
