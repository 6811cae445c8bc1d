package markov

import (
	"log/slog"

	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultTolerance     = 1e-9
	defaultMaxIterations = 100000
)

// SolverOptions bounds the iterative fallback. The iteration cap exists to
// bound worst-case numerical non-convergence, not to support cancellation.
type SolverOptions struct {
	Tolerance     float64
	MaxIterations int
}

func (o SolverOptions) normalized() SolverOptions {
	n := o
	if n.Tolerance <= 0 {
		n.Tolerance = defaultTolerance
	}
	if n.MaxIterations <= 0 {
		n.MaxIterations = defaultMaxIterations
	}
	return n
}

// ConversionProbability returns the probability that a journey starting at
// (start) is eventually absorbed into (conversion).
//
// The happy path solves the fundamental-matrix system (I-Q)B = R and reads
// off the (start) row. A singular or near-singular (I-Q) is an expected,
// recoverable condition (near-deterministic rows can produce one), so it is
// reported by solveFundamental as a tagged miss rather than an error, and the
// bounded fixed-point iteration takes over.
//
// Reachability is decided on the graph support first, so the exact-0 and
// exact-1 contracts hold bit-for-bit regardless of solver arithmetic.
func ConversionProbability(g *Graph, opts SolverOptions) float64 {
	opts = opts.normalized()

	reachable := reachableFrom(g, channel.Start)
	if _, ok := reachable[channel.Conversion]; !ok {
		return 0
	}
	if _, ok := reachable[channel.Null]; !ok {
		return 1
	}

	// Only transient states reachable from (start) participate: unreachable
	// rows cannot carry mass and would only inflate the system.
	transient := make([]string, 0, len(g.transient))
	for _, s := range g.transient {
		if _, ok := reachable[s]; ok {
			transient = append(transient, s)
		}
	}

	if p, ok := solveFundamental(g, transient); ok {
		return clampProbability(p)
	}

	slog.Warn("Fundamental matrix solve failed, falling back to fixed-point iteration",
		"transient_states", len(transient),
	)
	return clampProbability(iterateAbsorption(g, transient, opts))
}

// reachableFrom walks the support of the probability rows from a start state.
func reachableFrom(g *Graph, from string) map[string]struct{} {
	reachable := map[string]struct{}{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for tr, p := range g.probs {
			if tr.From != s || p <= 0 {
				continue
			}
			if _, seen := reachable[tr.To]; seen {
				continue
			}
			reachable[tr.To] = struct{}{}
			queue = append(queue, tr.To)
		}
	}
	return reachable
}

// solveFundamental computes B = (I-Q)^-1 R and returns B[(start),(conversion)].
// The second return is false when (I-Q) is singular and the caller must use
// the iterative fallback.
func solveFundamental(g *Graph, transient []string) (float64, bool) {
	n := len(transient)
	index := make(map[string]int, n)
	for i, s := range transient {
		index[s] = i
	}

	// A = I - Q over transient states; r = transient-to-(conversion) column.
	a := mat.NewDense(n, n, nil)
	r := mat.NewVecDense(n, nil)
	for i, s := range transient {
		a.Set(i, i, 1)
		for to, p := range g.Row(s) {
			if j, ok := index[to]; ok {
				a.Set(i, j, a.At(i, j)-p)
				continue
			}
			if to == channel.Conversion {
				r.SetVec(i, r.AtVec(i)+p)
			}
		}
	}

	var b mat.VecDense
	if err := b.SolveVec(a, r); err != nil {
		return 0, false
	}

	return b.AtVec(index[channel.Start]), true
}

// iterateAbsorption repeatedly pushes a probability vector through the chain
// until the transient mass dies out or stops moving within tolerance.
func iterateAbsorption(g *Graph, transient []string, opts SolverOptions) float64 {
	index := make(map[string]int, len(transient))
	for i, s := range transient {
		index[s] = i
	}

	mass := make([]float64, len(transient))
	mass[index[channel.Start]] = 1

	converted := 0.0
	for iter := 0; iter < opts.MaxIterations; iter++ {
		next := make([]float64, len(transient))
		moved := 0.0
		for i, s := range transient {
			if mass[i] == 0 {
				continue
			}
			for to, p := range g.Row(s) {
				share := mass[i] * p
				switch {
				case to == channel.Conversion:
					converted += share
				case to == channel.Null:
					// absorbed, drops out of the transient vector
				default:
					next[index[to]] += share
				}
				moved += share
			}
		}
		mass = next

		remaining := 0.0
		for _, m := range mass {
			remaining += m
		}
		if remaining < opts.Tolerance || moved < opts.Tolerance {
			break
		}
	}
	return converted
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
