package manifest

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the manifest schema.
const Schema = `
-- One row per entry template
CREATE TABLE IF NOT EXISTS entries (
    resource_path TEXT PRIMARY KEY,
    key TEXT NOT NULL,
    mode TEXT NOT NULL,
    key_mode TEXT NOT NULL,
    output_path TEXT,
    compilation_id TEXT NOT NULL,
    duration_ns INTEGER NOT NULL,
    compiled_at INTEGER NOT NULL
);

-- Ordered dependency list of each entry
CREATE TABLE IF NOT EXISTS dependencies (
    resource_path TEXT NOT NULL,
    position INTEGER NOT NULL,
    dependency TEXT NOT NULL,
    PRIMARY KEY (resource_path, position)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dependencies_dependency ON dependencies(dependency);
CREATE INDEX IF NOT EXISTS idx_entries_compiled_at ON entries(compiled_at);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const (
	upsertEntry = `
INSERT INTO entries (resource_path, key, mode, key_mode, output_path, compilation_id, duration_ns, compiled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(resource_path) DO UPDATE SET
    key = excluded.key,
    mode = excluded.mode,
    key_mode = excluded.key_mode,
    output_path = excluded.output_path,
    compilation_id = excluded.compilation_id,
    duration_ns = excluded.duration_ns,
    compiled_at = excluded.compiled_at;
`

	selectEntries = `
SELECT resource_path, key, mode, key_mode, output_path, compilation_id, duration_ns, compiled_at
FROM entries`

	selectDependencies = `
SELECT resource_path, dependency FROM dependencies ORDER BY resource_path, position`
)
