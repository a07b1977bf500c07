package db

// baseSchema is the schema as first shipped. Later fields arrive through
// columnMigrations so that databases created by old releases keep working.
var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		cluster_hash   TEXT PRIMARY KEY,
		summary        TEXT NOT NULL,
		country        TEXT NOT NULL,
		regions        TEXT NOT NULL DEFAULT '[]',
		event_type     TEXT NOT NULL,
		severity       INTEGER NOT NULL,
		confidence     REAL NOT NULL DEFAULT 0,
		actors         TEXT NOT NULL DEFAULT '[]',
		article_count  INTEGER NOT NULL DEFAULT 1,
		sources        TEXT NOT NULL DEFAULT '[]',
		article_urls   TEXT NOT NULL DEFAULT '[]',
		primary_url    TEXT NOT NULL,
		primary_title  TEXT NOT NULL,
		published_at   TEXT NOT NULL,
		extracted_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quarantine (
		id             TEXT PRIMARY KEY,
		cluster_hash   TEXT NOT NULL,
		raw_output     TEXT,
		error_reasons  TEXT NOT NULL DEFAULT '[]',
		primary_title  TEXT,
		primary_url    TEXT,
		sources        TEXT NOT NULL DEFAULT '[]',
		article_urls   TEXT NOT NULL DEFAULT '[]',
		quarantined_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS unsubscribes (
		email           TEXT PRIMARY KEY,
		token           TEXT NOT NULL,
		unsubscribed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS digest_tokens (
		token     TEXT PRIMARY KEY,
		email     TEXT NOT NULL,
		issued_at TEXT NOT NULL
	)`,
}

type columnMigration struct {
	table  string
	column string
	ddl    string
}

// columnMigrations are additive only. SQLite cannot add NOT NULL columns
// without a default, so every entry is nullable or defaulted.
var columnMigrations = []columnMigration{
	{"events", "event_subtype", `ALTER TABLE events ADD COLUMN event_subtype TEXT`},
	{"events", "scope", `ALTER TABLE events ADD COLUMN scope TEXT NOT NULL DEFAULT 'local'`},
	{"events", "verification_status", `ALTER TABLE events ADD COLUMN verification_status TEXT NOT NULL DEFAULT 'reported'`},
	{"events", "source_tier", `ALTER TABLE events ADD COLUMN source_tier TEXT`},
	{"events", "rationale", `ALTER TABLE events ADD COLUMN rationale TEXT`},
	{"events", "actors_normalized", `ALTER TABLE events ADD COLUMN actors_normalized TEXT NOT NULL DEFAULT '[]'`},
	{"events", "model_version", `ALTER TABLE events ADD COLUMN model_version TEXT`},
	{"events", "prompt_version", `ALTER TABLE events ADD COLUMN prompt_version TEXT`},
	{"quarantine", "model_version", `ALTER TABLE quarantine ADD COLUMN model_version TEXT`},
	{"quarantine", "prompt_version", `ALTER TABLE quarantine ADD COLUMN prompt_version TEXT`},
}

var indexSchema = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type)`,
	`CREATE INDEX IF NOT EXISTS idx_events_country ON events(country)`,
	`CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity)`,
	`CREATE INDEX IF NOT EXISTS idx_events_published_at ON events(published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_quarantine_cluster_hash ON quarantine(cluster_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_quarantine_quarantined_at ON quarantine(quarantined_at)`,
}
