package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
	_ "github.com/mattn/go-sqlite3"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS samples (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_ns INTEGER NOT NULL,
	kind     TEXT    NOT NULL,
	ok       INTEGER NOT NULL,
	value    REAL    NOT NULL,
	payload  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_kind_taken ON samples(kind, taken_ns);
`

// Archive is the durable sample store. Rows keep the scalar value for cheap
// range scans and the full sample JSON for lossless replay.
type Archive struct {
	db *sql.DB
}

func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Insert(s sample.Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	ok := 0
	if s.OK() {
		ok = 1
	}
	_, err = a.db.Exec(
		`INSERT INTO samples (taken_ns, kind, ok, value, payload) VALUES (?, ?, ?, ?, ?)`,
		s.Taken().UnixNano(), string(s.Kind), ok, s.Value(), string(payload))
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// QueryRange returns samples of one kind taken in [from, to], oldest first.
func (a *Archive) QueryRange(kind sample.Kind, from, to time.Time) ([]sample.Sample, error) {
	rows, err := a.db.Query(
		`SELECT payload FROM samples WHERE kind = ? AND taken_ns >= ? AND taken_ns <= ? ORDER BY taken_ns, id`,
		string(kind), from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []sample.Sample
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		var s sample.Sample
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
