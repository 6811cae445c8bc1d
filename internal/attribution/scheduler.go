package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
	"github.com/meridian-lab/project-meridian/internal/core/journey"
	"github.com/meridian-lab/project-meridian/internal/core/storage"
)

const defaultLoadBatchSize = 50000

// Runner loads the touchpoint batch, normalizes it into journeys, runs the
// engine, and persists the resulting report snapshot. Both the scheduler and
// the on-demand recompute endpoint go through it.
type Runner struct {
	touchpointStore storage.TouchpointStore
	reportStore     ReportStore
	normalizer      *journey.Normalizer
	loadBatchSize   int
	opts            Options
}

// NewRunner creates an attribution runner.
func NewRunner(
	touchpointStore storage.TouchpointStore,
	reportStore ReportStore,
	normalizer *journey.Normalizer,
	loadBatchSize int,
	opts Options,
) *Runner {
	if loadBatchSize <= 0 {
		loadBatchSize = defaultLoadBatchSize
	}
	return &Runner{
		touchpointStore: touchpointStore,
		reportStore:     reportStore,
		normalizer:      normalizer,
		loadBatchSize:   loadBatchSize,
		opts:            opts.normalized(),
	}
}

// RunOnce recomputes the model over the full touchpoint dataset and persists
// the report. The model is batch by design: every run recomputes everything
// from scratch, so there is no checkpoint to advance and no partial state to
// recover.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	touchpoints, err := r.loadAllTouchpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("load touchpoints: %w", err)
	}

	// Cursor order is ingestion order; the normalizer trusts per-user
	// chronological order, so restore it before grouping.
	sort.SliceStable(touchpoints, func(i, j int) bool {
		if touchpoints[i].UserID != touchpoints[j].UserID {
			return touchpoints[i].UserID < touchpoints[j].UserID
		}
		if !touchpoints[i].Timestamp.Equal(touchpoints[j].Timestamp) {
			return touchpoints[i].Timestamp.Before(touchpoints[j].Timestamp)
		}
		return touchpoints[i].IngestSeq < touchpoints[j].IngestSeq
	})

	journeys := r.normalizer.Normalize(touchpoints)

	report, err := Run(ctx, journeys, r.opts)
	if err != nil {
		return nil, err
	}

	if err := r.reportStore.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	return report, nil
}

func (r *Runner) loadAllTouchpoints(ctx context.Context) ([]*v1.Touchpoint, error) {
	var all []*v1.Touchpoint
	cursor := int64(0)
	for {
		batch, err := r.touchpointStore.RetrieveTouchpointsAfterCursor(ctx, cursor, r.loadBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
		cursor = batch[len(batch)-1].IngestSeq
		if len(batch) < r.loadBatchSize {
			return all, nil
		}
	}
}

// Scheduler runs attribution recomputes on a periodic interval.
// It is stateless: each tick independently recomputes the full model.
type Scheduler struct {
	interval time.Duration
	runner   *Runner
}

// NewScheduler creates a cron scheduler around a runner.
func NewScheduler(interval time.Duration, runner *Runner) *Scheduler {
	return &Scheduler{interval: interval, runner: runner}
}

// Start begins periodic recomputation. Runs until context is cancelled,
// finishing with one final recompute so the stored report reflects
// everything ingested before shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting attribution scheduler", "interval", s.interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Scheduler] Running final recompute before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Scheduler] Final recompute complete")

			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.runner.RunOnce(ctx)
	if errors.Is(err, ErrNoJourneys) {
		slog.Warn("[Scheduler] No closed journeys yet, skipping recompute")
		return
	}
	if err != nil {
		slog.Error("[Scheduler] Attribution recompute failed", "error", err)
		return
	}

	slog.Info("[Scheduler] Recompute complete",
		"report_id", report.ID,
		"journeys", report.JourneyCount,
		"channels", len(report.Channels),
		"elapsed", time.Since(start),
	)
}
