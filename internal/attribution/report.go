package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ChannelAttribution is one channel's full scorecard: the causal removal
// effect, its normalized weight, and the attributed revenue under both the
// Markov model and the last-touch baseline.
type ChannelAttribution struct {
	Channel          string          `json:"channel"`
	RemovalEffect    float64         `json:"removal_effect"`
	NormalizedWeight float64         `json:"normalized_weight"`
	MarkovRevenue    decimal.Decimal `json:"markov_revenue"`
	LastTouchRevenue decimal.Decimal `json:"last_touch_revenue"`
}

// Report is one full attribution model snapshot. Reports are immutable once
// computed; a new run produces a new report.
type Report struct {
	ID                    string               `json:"id"`
	ComputedAt            time.Time            `json:"computed_at"`
	TotalConversionValue  decimal.Decimal      `json:"total_conversion_value"`
	ConversionProbability float64              `json:"conversion_probability"`
	JourneyCount          int                  `json:"journey_count"`
	ConvertedCount        int                  `json:"converted_count"`
	Channels              []ChannelAttribution `json:"channels"`
}

// ErrNoReport is returned when no attribution report has been computed yet.
var ErrNoReport = errors.New("no attribution report available")

// ReportStore is the interface for durable report persistence.
//
// Contract: SaveReport writes the report header and all channel rows in a
// single database transaction, so a reader never observes a half-written
// snapshot.
type ReportStore interface {
	// SaveReport persists a full report snapshot atomically.
	SaveReport(ctx context.Context, report *Report) error

	// LatestReport returns the most recently computed report.
	// Returns ErrNoReport if no report exists yet.
	LatestReport(ctx context.Context) (*Report, error)
}
