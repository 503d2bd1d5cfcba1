package journal

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	vix REAL,
	equity REAL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`
