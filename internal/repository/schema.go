package repository

// Schema definitions for the Clarity database.
// Compatible with both SQLite and PostgreSQL.

const schemaSubmissions = `
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    carrier TEXT NOT NULL,
    state TEXT NOT NULL,
    plan_source TEXT NOT NULL,
    medication TEXT NOT NULL,
    bmi REAL NOT NULL,
    age INTEGER NOT NULL,
    status TEXT NOT NULL,
    reason TEXT NOT NULL,
    profile TEXT NOT NULL,
    pricing TEXT,
    trace_id TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_email ON submissions(email);
CREATE INDEX IF NOT EXISTS idx_submissions_carrier ON submissions(carrier, state);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
`

// schemaPolicyDocuments stores raw policy JSON so the active document
// can be reloaded without filesystem access.
const schemaPolicyDocuments = `
CREATE TABLE IF NOT EXISTS policy_documents (
    id TEXT PRIMARY KEY,
    raw BLOB NOT NULL,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_documents_loaded ON policy_documents(loaded_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSubmissions,
		schemaPolicyDocuments,
	}
}
