package db

// PostgreSQL schema for scrape records and the tag ledger

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_scrape_records_table",
		Up: `
			CREATE TABLE IF NOT EXISTS scrape_records (
				seq BIGSERIAL PRIMARY KEY,
				id TEXT NOT NULL UNIQUE,
				url TEXT NOT NULL,
				summary TEXT NOT NULL,
				tags TEXT NOT NULL DEFAULT '[]',
				grade TEXT NOT NULL,
				badge TEXT NOT NULL,
				preferences TEXT,
				content TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_scrape_records_url ON scrape_records(url);
			CREATE INDEX IF NOT EXISTS idx_scrape_records_created_at ON scrape_records(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_scrape_records_created_at;
			DROP INDEX IF EXISTS idx_scrape_records_url;
			DROP TABLE IF EXISTS scrape_records;
		`,
	},
	{
		Version: 2,
		Name:    "create_tags_table",
		Up: `
			CREATE TABLE IF NOT EXISTS tags (
				name TEXT PRIMARY KEY,
				count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS tags;
		`,
	},
	{
		Version: 3,
		Name:    "add_archive_key_to_scrape_records",
		Up: `
			ALTER TABLE scrape_records ADD COLUMN IF NOT EXISTS archive_key TEXT;
		`,
		Down: `
			ALTER TABLE scrape_records DROP COLUMN IF EXISTS archive_key;
		`,
	},
}
