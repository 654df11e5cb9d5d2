package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: records, sync log and settings
	{
		`CREATE TABLE records (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			remote_id TEXT,
			origin TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_records_remote ON records(entity_type, remote_id) WHERE remote_id IS NOT NULL`,
		`CREATE INDEX idx_records_type_created ON records(entity_type, created_at)`,

		`CREATE TABLE record_fields (
			record_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (record_id, name),
			FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE record_comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'Info',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX idx_record_comments_record ON record_comments(record_id, id)`,

		`CREATE TABLE sync_logs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			entity_type TEXT,
			entity_id TEXT,
			remote_id TEXT,
			endpoint TEXT,
			method TEXT,
			request_payload TEXT,
			response_payload TEXT,
			error_type TEXT,
			error_message TEXT,
			retry_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
			retry_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			resolved_at TEXT
		)`,
		`CREATE INDEX idx_sync_logs_entity ON sync_logs(entity_type, entity_id, status, retry_scheduled)`,
		`CREATE INDEX idx_sync_logs_remote ON sync_logs(remote_id)`,

		`CREATE TABLE settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			base_url TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			enable_sync BOOLEAN NOT NULL DEFAULT FALSE,
			sync_status TEXT NOT NULL DEFAULT 'Not Configured',
			last_sync_at TEXT,
			updated_at TEXT NOT NULL
		)`,
	},

	// Migration 2: deferred job queue
	{
		`CREATE TABLE jobs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			run_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_jobs_due ON jobs(status, run_at)`,
	},
}
