package sqlite

// Schema DDL for the backing store. Table ids are stored as the int64 bit
// pattern of the uint64 id; database/sql rejects uint64 values with the high
// bit set.
const (
	createEntries = `CREATE TABLE IF NOT EXISTS entries (
    table_id INTEGER NOT NULL,
    entry_key TEXT NOT NULL,
    value BLOB NOT NULL,
    checksum TEXT NOT NULL,
    revision TEXT NOT NULL,
    codec TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (table_id, entry_key)
);`
)

// schemaDDL lists all statements executed on Attach, in order.
var schemaDDL = []string{
	`PRAGMA journal_mode = WAL;`,
	createEntries,
}

// Queries used by the backend.
const (
	selectEntry = `SELECT value, checksum, revision, codec, updated_at
FROM entries WHERE table_id = ? AND entry_key = ?`

	existsEntry = `SELECT 1 FROM entries WHERE table_id = ? AND entry_key = ?`

	upsertEntry = `INSERT INTO entries (table_id, entry_key, value, checksum, revision, codec, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (table_id, entry_key) DO UPDATE SET
    value = excluded.value,
    checksum = excluded.checksum,
    revision = excluded.revision,
    codec = excluded.codec,
    updated_at = excluded.updated_at`

	scanEntries = `SELECT table_id, entry_key, value, checksum, revision, codec, updated_at
FROM entries`
)
