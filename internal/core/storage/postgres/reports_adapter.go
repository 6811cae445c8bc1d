package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/meridian-lab/project-meridian/internal/attribution"
)

// ReportAdapter implements attribution.ReportStore for PostgreSQL.
// Report snapshots are append-only: one header row plus one row per channel,
// written in a single transaction so readers never see a torn report.
type ReportAdapter struct {
	db *sql.DB
}

// NewReportAdapter creates a report store on an existing database handle.
func NewReportAdapter(db *sql.DB) *ReportAdapter {
	return &ReportAdapter{db: db}
}

// SaveReport persists a full report snapshot atomically.
func (a *ReportAdapter) SaveReport(ctx context.Context, report *attribution.Report) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, querySaveReport,
		report.ID,
		report.ComputedAt,
		report.TotalConversionValue,
		report.ConversionProbability,
		report.JourneyCount,
		report.ConvertedCount,
	)
	if err != nil {
		return fmt.Errorf("insert report header: %w", err)
	}

	for _, ch := range report.Channels {
		_, err = tx.ExecContext(ctx, querySaveReportChannel,
			report.ID,
			ch.Channel,
			ch.RemovalEffect,
			ch.NormalizedWeight,
			ch.MarkovRevenue,
			ch.LastTouchRevenue,
		)
		if err != nil {
			return fmt.Errorf("insert report channel %q: %w", ch.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report transaction: %w", err)
	}

	slog.Info("[Postgres] Saved attribution report",
		"report_id", report.ID,
		"channels", len(report.Channels))
	return nil
}

// LatestReport returns the most recently computed report, or
// attribution.ErrNoReport when none exists.
func (a *ReportAdapter) LatestReport(ctx context.Context) (*attribution.Report, error) {
	var report attribution.Report
	err := a.db.QueryRowContext(ctx, queryLatestReport).Scan(
		&report.ID,
		&report.ComputedAt,
		&report.TotalConversionValue,
		&report.ConversionProbability,
		&report.JourneyCount,
		&report.ConvertedCount,
	)
	if err == sql.ErrNoRows {
		return nil, attribution.ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("query latest report: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, queryReportChannels, report.ID)
	if err != nil {
		return nil, fmt.Errorf("query report channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ch attribution.ChannelAttribution
		if err := rows.Scan(
			&ch.Channel,
			&ch.RemovalEffect,
			&ch.NormalizedWeight,
			&ch.MarkovRevenue,
			&ch.LastTouchRevenue,
		); err != nil {
			return nil, fmt.Errorf("scan report channel row: %w", err)
		}
		report.Channels = append(report.Channels, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report channels: %w", err)
	}

	return &report, nil
}
