package postgres

import (
	"fmt"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTouchpointRow scans a database row into a Touchpoint struct.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
// decimal.Decimal implements sql.Scanner, so NUMERIC columns scan losslessly.
func scanTouchpointRow(row scanner) (*v1.Touchpoint, error) {
	var tp v1.Touchpoint

	err := row.Scan(
		&tp.UserID,
		&tp.Timestamp,
		&tp.Channel,
		&tp.Interaction,
		&tp.Value,
		&tp.IngestedAt,
		&tp.IngestSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan touchpoint row: %w", err)
	}

	return &tp, nil
}
