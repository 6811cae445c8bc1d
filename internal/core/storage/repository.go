package storage

import (
	"context"
	"errors"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
)

// ErrDuplicate is returned when a touchpoint with the same
// (user_id, occurred_at, channel, interaction) already exists.
var ErrDuplicate = errors.New("touchpoint already exists")

// TouchpointStore defines the interface for storing and retrieving touchpoints.
type TouchpointStore interface {
	SaveTouchpoint(ctx context.Context, tp *v1.Touchpoint) error

	// RetrieveTouchpointsAfterCursor fetches touchpoints after a cursor
	// (ingest_seq) in strict total order. Used by the attribution scheduler
	// to page through the full dataset without batch boundary loss.
	// cursor=0 means "from the beginning".
	RetrieveTouchpointsAfterCursor(ctx context.Context, cursor int64, limit int) ([]*v1.Touchpoint, error)

	// RetrieveUserTouchpoints fetches one user's touchpoints ordered by
	// occurred_at. Serves the touchpoint listing API.
	RetrieveUserTouchpoints(ctx context.Context, userID string) ([]*v1.Touchpoint, error)
}
