package audit

// Schema contains the DDL of the audit tables.
const Schema = `
-- Runs: one remediation of one document
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    page_url    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'running',
    violations  INTEGER NOT NULL DEFAULT 0,
    accepted    INTEGER NOT NULL DEFAULT 0,
    rejected    INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    started_at  INTEGER NOT NULL,
    finished_at INTEGER
);

-- Fix records: one attempt by one strategy on one node
CREATE TABLE IF NOT EXISTS fix_records (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    violation_id TEXT NOT NULL,
    selector     TEXT NOT NULL,
    strategy     TEXT NOT NULL,
    accepted     INTEGER NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_fix_records_run ON fix_records(run_id, seq);

-- Provider calls: prompt/response log of the correction provider
CREATE TABLE IF NOT EXISTS provider_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    instruction TEXT NOT NULL,
    payload     TEXT NOT NULL,
    response    TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_provider_calls_run ON provider_calls(run_id);
`
