package journey

import (
	"log/slog"
	"time"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/shopspring/decimal"
)

// Normalizer converts each user's ordered touchpoint sequence into a bounded
// Journey. It is the only component allowed to drop data, and it only ever
// drops locally: a bad touchpoint loses that record, a bad journey loses that
// user. Neither is fatal to the run.
type Normalizer struct {
	resolver *channel.Resolver
	horizon  time.Duration
	nowFn    func() time.Time
}

// NewNormalizer creates a normalizer. horizon gates non-converting users:
// those whose last touch is younger than horizon at evaluation time are
// still open and excluded from the model rather than counted as (null).
// horizon <= 0 disables the gate.
func NewNormalizer(resolver *channel.Resolver, horizon time.Duration) *Normalizer {
	if resolver == nil {
		resolver = channel.NewResolver(nil)
	}
	return &Normalizer{
		resolver: resolver,
		horizon:  horizon,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Normalize folds pre-ordered touchpoints into one Journey per user.
// Input ordering by (user_id, timestamp) is trusted, not re-derived.
func (n *Normalizer) Normalize(touchpoints []*v1.Touchpoint) []Journey {
	now := n.nowFn()

	// Group per user, preserving first-seen user order so the output is
	// deterministic for a given input batch.
	var order []string
	groups := make(map[string][]*v1.Touchpoint)
	for _, tp := range touchpoints {
		if tp == nil {
			continue
		}
		if _, seen := groups[tp.UserID]; !seen {
			order = append(order, tp.UserID)
		}
		groups[tp.UserID] = append(groups[tp.UserID], tp)
	}

	journeys := make([]Journey, 0, len(order))
	for _, userID := range order {
		j, ok := n.normalizeUser(userID, groups[userID], now)
		if !ok {
			continue
		}
		journeys = append(journeys, j)
	}
	return journeys
}

func (n *Normalizer) normalizeUser(userID string, tps []*v1.Touchpoint, now time.Time) (Journey, bool) {
	j := Journey{UserID: userID, Value: decimal.Zero}

	var lastTs time.Time
	lastInteraction := ""
	for _, tp := range tps {
		name := n.resolver.Resolve(tp.Channel)
		if name == "" || channel.IsVirtual(name) {
			slog.Warn("Dropping touchpoint with unusable channel",
				"user_id", userID,
				"channel", tp.Channel,
				"timestamp", tp.Timestamp,
			)
			continue
		}

		// Consecutive repeats of the same channel stay in the path:
		// self-loops are valid transitions and are counted.
		j.Path = append(j.Path, name)
		lastTs = tp.Timestamp
		lastInteraction = tp.Interaction

		if tp.Interaction == v1.InteractionConversion {
			j.Value = j.Value.Add(tp.Value)
		}
	}

	if len(j.Path) == 0 {
		slog.Warn("Dropping journey with zero usable touchpoints", "user_id", userID)
		return Journey{}, false
	}

	// The last surviving record decides the terminal state.
	j.Converted = lastInteraction == v1.InteractionConversion
	if !j.Converted {
		// Conversion value without a terminal conversion would double-count
		// against the total; the journey is a (null) observation only.
		j.Value = decimal.Zero
	}

	// A non-converting journey is only a (null) observation once the user
	// has gone quiet for the full horizon; younger ones are still open.
	if !j.Converted && n.horizon > 0 && now.Sub(lastTs) < n.horizon {
		slog.Debug("Skipping still-open journey", "user_id", userID, "last_touch", lastTs)
		return Journey{}, false
	}

	return j, true
}
