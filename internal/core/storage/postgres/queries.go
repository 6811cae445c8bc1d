package postgres

// SQL queries for touchpoint and report storage.

const (
	// querySaveTouchpoint inserts a touchpoint idempotently.
	// The composite key (user_id, occurred_at, channel, interaction)
	// deduplicates replayed feeds; ON CONFLICT DO NOTHING returns no rows
	// (sql.ErrNoRows) for duplicates. RETURNING retrieves the
	// auto-generated ingest_seq for cursor tracking.
	querySaveTouchpoint = `
		INSERT INTO touchpoints (
			user_id, occurred_at, channel, interaction, value, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, occurred_at, channel, interaction) DO NOTHING
		RETURNING ingest_seq
	`

	// queryRetrieveTouchpointsAfterCursor pages through all touchpoints in
	// strict total order. Prevents batch boundary data loss by using the
	// monotonic sequence rather than timestamps.
	queryRetrieveTouchpointsAfterCursor = `
		SELECT
			user_id, occurred_at, channel, interaction, value,
			ingested_at, ingest_seq
		FROM touchpoints
		WHERE ingest_seq > $1
		ORDER BY ingest_seq ASC
		LIMIT $2
	`

	// queryRetrieveUserTouchpoints fetches one user's journey in
	// chronological order; ingest_seq breaks timestamp ties.
	queryRetrieveUserTouchpoints = `
		SELECT
			user_id, occurred_at, channel, interaction, value,
			ingested_at, ingest_seq
		FROM touchpoints
		WHERE user_id = $1
		ORDER BY occurred_at ASC, ingest_seq ASC
	`

	// querySaveReport inserts a report header row.
	querySaveReport = `
		INSERT INTO attribution_reports (
			id, computed_at, total_conversion_value, conversion_probability,
			journey_count, converted_count
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// querySaveReportChannel inserts one channel scorecard row.
	querySaveReportChannel = `
		INSERT INTO attribution_report_channels (
			report_id, channel, removal_effect, normalized_weight,
			markov_revenue, last_touch_revenue
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// queryLatestReport fetches the most recent report header.
	queryLatestReport = `
		SELECT
			id, computed_at, total_conversion_value, conversion_probability,
			journey_count, converted_count
		FROM attribution_reports
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`

	// queryReportChannels fetches a report's channel rows.
	queryReportChannels = `
		SELECT
			channel, removal_effect, normalized_weight,
			markov_revenue, last_touch_revenue
		FROM attribution_report_channels
		WHERE report_id = $1
		ORDER BY channel ASC
	`
)
