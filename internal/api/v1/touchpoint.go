package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Interaction kinds carried by a touchpoint.
// A "touch" is any marketing contact (click, impression, email open).
// A "conversion" closes the journey and carries the conversion value.
const (
	InteractionTouch      = "touch"
	InteractionConversion = "conversion"
)

// Touchpoint is the atomic unit of the system: one marketing interaction
// for one user at a point in time, tagged with the channel that produced it.
//
// Touchpoints arrive pre-ordered per user from the sessionization pipeline;
// the engine trusts (UserID, Timestamp) ordering and never re-derives it.
type Touchpoint struct {
	// UserID identifies the person (or cookie) whose journey this event
	// belongs to. This is the grouping dimension for journey assembly.
	UserID string `json:"user_id"`

	// Timestamp is when the interaction happened (client-side clock).
	Timestamp time.Time `json:"timestamp"`

	// Channel is the marketing channel, canonicalized to lowercase
	// underscore form (e.g. "google_ads", "email_newsletter").
	Channel string `json:"channel"`

	// Interaction is "touch" or "conversion".
	Interaction string `json:"interaction"`

	// Value is the conversion value. Zero unless Interaction is
	// "conversion". Exact decimal, this is money.
	Value decimal.Decimal `json:"value"`

	// IngestedAt is when the service received the record (server-side clock).
	IngestedAt time.Time `json:"ingested_at"`

	// IngestSeq is a monotonic sequence number assigned on ingestion.
	// Set by database (BIGSERIAL), not exposed in the public API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures the touchpoint has all required attributes.
// Channel may be empty here: the journey normalizer drops such records
// with a warning instead of failing the whole batch.
func (t *Touchpoint) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if t.Interaction != InteractionTouch && t.Interaction != InteractionConversion {
		return fmt.Errorf("interaction must be %q or %q, got %q",
			InteractionTouch, InteractionConversion, t.Interaction)
	}

	if t.Value.IsNegative() {
		return fmt.Errorf("value must not be negative")
	}

	if t.Interaction == InteractionTouch && !t.Value.IsZero() {
		return fmt.Errorf("value must be zero for touch interactions")
	}

	return nil
}
