package markov

import (
	"github.com/meridian-lab/project-meridian/internal/core/journey"
	"github.com/shopspring/decimal"
)

// Allocation is one channel's attributed revenue under both models.
type Allocation struct {
	Channel          string          `json:"channel"`
	MarkovRevenue    decimal.Decimal `json:"markov_revenue"`
	LastTouchRevenue decimal.Decimal `json:"last_touch_revenue"`
}

// TotalConversionValue sums the conversion value of all converting journeys.
func TotalConversionValue(journeys []journey.Journey) decimal.Decimal {
	total := decimal.Zero
	for _, j := range journeys {
		if j.Converted {
			total = total.Add(j.Value)
		}
	}
	return total
}

// AllocateRevenue maps normalized removal-effect weights and the last-touch
// baseline onto the total conversion value. Both columns sum exactly to the
// total: the Markov column's floating-point residue is folded into the
// heaviest channel so the invariant holds to the cent, and last-touch credits
// whole conversion values by construction.
func AllocateRevenue(effects []RemovalEffect, journeys []journey.Journey) []Allocation {
	if len(effects) == 0 {
		return nil
	}

	total := TotalConversionValue(journeys)

	lastTouch := make(map[string]decimal.Decimal)
	for _, j := range journeys {
		if !j.Converted {
			continue
		}
		ch := j.LastChannel()
		lastTouch[ch] = lastTouch[ch].Add(j.Value)
	}

	allocations := make([]Allocation, len(effects))
	allocated := decimal.Zero
	heaviest := 0
	for i, e := range effects {
		share := decimal.NewFromFloat(e.Weight).Mul(total).Round(6)
		allocations[i] = Allocation{
			Channel:          e.Channel,
			MarkovRevenue:    share,
			LastTouchRevenue: lastTouch[e.Channel],
		}
		allocated = allocated.Add(share)
		if e.Weight > effects[heaviest].Weight {
			heaviest = i
		}
	}

	residue := total.Sub(allocated)
	if !residue.IsZero() {
		allocations[heaviest].MarkovRevenue = allocations[heaviest].MarkovRevenue.Add(residue)
	}

	return allocations
}
