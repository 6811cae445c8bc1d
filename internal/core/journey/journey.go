package journey

import (
	"fmt"
	"time"

	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/shopspring/decimal"
)

// Journey is one user's ordered, terminated path through marketing channels.
// Path holds canonical channel names only; the virtual (start) prefix and
// (conversion)/(null) terminal are implied by construction and materialized
// by States.
type Journey struct {
	UserID    string
	Path      []string
	Converted bool
	Value     decimal.Decimal // total conversion value; zero for non-converting journeys
}

// States returns the full bounded state sequence:
// (start), path..., (conversion)|(null).
// Every journey has at least two states by the non-empty invariant.
func (j Journey) States() []string {
	states := make([]string, 0, len(j.Path)+2)
	states = append(states, channel.Start)
	states = append(states, j.Path...)
	if j.Converted {
		states = append(states, channel.Conversion)
	} else {
		states = append(states, channel.Null)
	}
	return states
}

// LastChannel returns the last real channel touched before the terminal
// state, i.e. the channel that earns last-touch credit. Empty for a journey
// with no surviving touchpoints (which the normalizer never emits).
func (j Journey) LastChannel() string {
	if len(j.Path) == 0 {
		return ""
	}
	return j.Path[len(j.Path)-1]
}

// ParseHorizon parses an inactivity-horizon string into a duration.
// Supports Go duration syntax (e.g. "72h") plus "Xd" for days.
func ParseHorizon(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("inactivity horizon must not be empty")
	}

	// time.ParseDuration has no "d" unit, handle day suffixes here.
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid inactivity horizon %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("inactivity horizon must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid inactivity horizon %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("inactivity horizon must be positive, got %q", s)
	}
	return d, nil
}
