package repository

// pgSchema is applied by PGStore.Migrate. Statements are idempotent.
var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS ticker_statistics (
		symbol          TEXT PRIMARY KEY,
		industry        TEXT NOT NULL,
		period_end      DATE,
		pe_ratio        NUMERIC,
		revenue_growth  NUMERIC,
		net_income_ttm  NUMERIC,
		debt_ratio      NUMERIC,
		run_id          TEXT NOT NULL,
		computed_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ticker_statistics_industry ON ticker_statistics (industry)`,
	`CREATE TABLE IF NOT EXISTS industry_aggregates (
		industry          TEXT PRIMARY KEY,
		avg_pe            NUMERIC,
		pe_count          INTEGER NOT NULL DEFAULT 0,
		avg_growth        NUMERIC,
		growth_count      INTEGER NOT NULL DEFAULT 0,
		ticker_count      INTEGER NOT NULL DEFAULT 0,
		total_net_income  NUMERIC,
		run_id            TEXT NOT NULL,
		computed_at       TIMESTAMPTZ NOT NULL,
		CHECK (pe_count <= ticker_count AND growth_count <= ticker_count)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id             TEXT PRIMARY KEY,
		started_at         TIMESTAMPTZ NOT NULL,
		finished_at        TIMESTAMPTZ NOT NULL,
		symbols_total      INTEGER NOT NULL,
		fetch_succeeded    INTEGER NOT NULL,
		fetch_failed       INTEGER NOT NULL,
		skipped            INTEGER NOT NULL,
		compute_succeeded  INTEGER NOT NULL,
		compute_failed     INTEGER NOT NULL,
		industries         INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs (started_at DESC)`,
}
