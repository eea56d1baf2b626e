package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/guregu/null/v5"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

const schema = `
CREATE TABLE IF NOT EXISTS endpoints (
    id                TEXT    PRIMARY KEY,
    position          INTEGER NOT NULL,
    name              TEXT    NOT NULL,
    url               TEXT    NOT NULL,
    time_sensitive    INTEGER NOT NULL,
    skip_tls_verify   INTEGER NOT NULL,
    expected_status   INTEGER,
    last_known_status TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    endpoint_id TEXT    NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    recorded_at TEXT    NOT NULL,
    status_code INTEGER,
    description TEXT    NOT NULL,
    latency_ns  INTEGER,
    critical    INTEGER NOT NULL,
    PRIMARY KEY (endpoint_id, seq)
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLite stores the snapshot in normalized tables. A meta row marks that a
// snapshot was saved, so an empty collection is distinguishable from none.
type SQLite struct {
	db *sql.DB

	// corruptErr is reported by the first Load after a damaged file was
	// moved aside at open.
	mu         sync.Mutex
	corruptErr error
}

// OpenSQLite opens (or creates) the SQLite database at path and applies the
// schema. A file that is not a usable database is renamed to
// "<path>.corrupt-<unix>" and replaced by a fresh one; the next Load then
// reports LoadCorrupt.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "everwatch.db"
	}
	db, err := initSQLite(ctx, path)
	if err == nil {
		return &SQLite{db: db}, nil
	}
	if !isCorruptDB(err) || path == ":memory:" {
		return nil, err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("moving corrupt database aside: %w (open: %v)", rerr, err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(path + suffix)
	}

	db, rerr := initSQLite(ctx, path)
	if rerr != nil {
		return nil, rerr
	}
	return &SQLite{
		db:         db,
		corruptErr: fmt.Errorf("%s moved to %s: %w", path, aside, err),
	}, nil
}

func initSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return db, nil
}

// isCorruptDB reports whether err is SQLite refusing the file itself.
func isCorruptDB(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save replaces every stored endpoint and record in one transaction.
func (s *SQLite) Save(ctx context.Context, eps []endpoint.Endpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, q := range []string{`DELETE FROM records`, `DELETE FROM endpoints`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clearing snapshot: %w", err)
		}
	}

	epStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoints (id, position, name, url, time_sensitive, skip_tls_verify, expected_status, last_known_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing endpoint insert: %w", err)
	}
	defer epStmt.Close()

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (endpoint_id, seq, recorded_at, status_code, description, latency_ns, critical)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()

	for pos, ep := range eps {
		_, err := epStmt.ExecContext(ctx,
			ep.ID, pos, ep.Name, ep.URL,
			ep.Settings.TimeSensitive, ep.Settings.SkipTLSVerification, ep.Settings.ExpectedStatus,
			ep.LastKnownStatus,
		)
		if err != nil {
			return fmt.Errorf("inserting endpoint %q: %w", ep.ID, err)
		}
		for seq, rec := range ep.History {
			_, err := recStmt.ExecContext(ctx,
				ep.ID, seq,
				rec.Timestamp.UTC().Format(time.RFC3339Nano),
				rec.StatusCode, rec.Description, rec.Latency, rec.Critical,
			)
			if err != nil {
				return fmt.Errorf("inserting record %d of %q: %w", seq, ep.ID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("stamping snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot.
func (s *SQLite) Load(ctx context.Context) LoadResult {
	s.mu.Lock()
	cerr := s.corruptErr
	s.corruptErr = nil
	s.mu.Unlock()
	if cerr != nil {
		return corrupt(cerr)
	}

	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return empty()
	}
	if err != nil {
		return unavailable(fmt.Errorf("reading snapshot stamp: %w", err))
	}

	eps, index, err := s.loadEndpoints(ctx)
	if err != nil {
		return corrupt(err)
	}
	if err := s.loadRecords(ctx, eps, index); err != nil {
		return corrupt(err)
	}
	if err := validate(eps); err != nil {
		return corrupt(err)
	}
	return loaded(eps)
}

func (s *SQLite) loadEndpoints(ctx context.Context) ([]endpoint.Endpoint, map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, time_sensitive, skip_tls_verify, expected_status, last_known_status
		FROM endpoints ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying endpoints: %w", err)
	}
	defer rows.Close()

	eps := []endpoint.Endpoint{}
	index := make(map[string]int)
	for rows.Next() {
		var ep endpoint.Endpoint
		err := rows.Scan(&ep.ID, &ep.Name, &ep.URL,
			&ep.Settings.TimeSensitive, &ep.Settings.SkipTLSVerification, &ep.Settings.ExpectedStatus,
			&ep.LastKnownStatus)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning endpoint row: %w", err)
		}
		index[ep.ID] = len(eps)
		eps = append(eps, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating endpoint rows: %w", err)
	}
	return eps, index, nil
}

func (s *SQLite) loadRecords(ctx context.Context, eps []endpoint.Endpoint, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint_id, recorded_at, status_code, description, latency_ns, critical
		FROM records ORDER BY endpoint_id, seq`)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         string
			recordedAt string
			code       null.Int
			latency    null.Int
			rec        endpoint.StatusRecord
		)
		if err := rows.Scan(&id, &recordedAt, &code, &rec.Description, &latency, &rec.Critical); err != nil {
			return fmt.Errorf("scanning record row: %w", err)
		}
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("record for unknown endpoint %q", id)
		}
		t, err := parseTime(recordedAt)
		if err != nil {
			return err
		}
		rec.Timestamp, rec.StatusCode, rec.Latency = t, code, latency
		eps[i].History = append(eps[i].History, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating record rows: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing recorded_at %q: %w", s, err)
		}
	}
	return t, nil
}
