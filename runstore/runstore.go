// ════════════════════════════════════════════════════════════════════════════
// RUN LEDGER
// ────────────────────────────────────────────────────────────────────────────
// One row per receiver run: identity, timing, the configuration it ran
// with (JSON) and the final counter snapshot. Experiments sweep batch size,
// queue depth and core placement; the ledger keeps every result comparable
// after the binary log files have been moved or converted.
//
// The store is only touched before and after the capture, never while the
// pinned loops run.
// ════════════════════════════════════════════════════════════════════════════

package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"netlatlab/config"
	"netlatlab/stats"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("runstore: run not found")

// Run is one ledger row.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Mode      string
	Config    config.Config
	Stats     stats.Snapshot
	Err       string
}

// NewRun stamps a fresh run for cfg.
func NewRun(cfg config.Config) Run {
	mode := "two-thread"
	if cfg.SingleThread {
		mode = "single-thread"
	}
	return Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Mode:      mode,
		Config:    cfg,
	}
}

// Store is a sqlite-backed ledger.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	started_ns     INTEGER NOT NULL,
	ended_ns       INTEGER NOT NULL,
	mode           TEXT NOT NULL,
	config_json    TEXT NOT NULL,
	received       INTEGER NOT NULL,
	processed      INTEGER NOT NULL,
	dropped        INTEGER NOT NULL,
	malformed      INTEGER NOT NULL,
	bad_magic      INTEGER NOT NULL,
	queue_full     INTEGER NOT NULL,
	negative       INTEGER NOT NULL,
	accumulated_ns INTEGER NOT NULL,
	min_ns         INTEGER NOT NULL,
	max_ns         INTEGER NOT NULL,
	mean_ns        REAL NOT NULL,
	error          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started_ns);
`

const columns = `id, started_ns, ended_ns, mode, config_json,
	received, processed, dropped, malformed, bad_magic, queue_full, negative,
	accumulated_ns, min_ns, max_ns, mean_ns, error`

// Open creates or opens the ledger at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("runstore: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("runstore: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("runstore: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runstore: schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT OR REPLACE INTO runs (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("runstore: prepare insert: %w", err)
	}
	return &Store{db: db, insert: insert}, nil
}

// Record writes r, replacing any earlier row with the same id. A zero
// EndedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now()
	}
	cfgJSON, err := sonnet.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("runstore: encode config: %w", err)
	}
	st := r.Stats
	_, err = s.insert.ExecContext(ctx,
		r.ID, r.StartedAt.UnixNano(), r.EndedAt.UnixNano(), r.Mode, string(cfgJSON),
		int64(st.Received), int64(st.Processed), int64(st.Dropped),
		int64(st.Malformed), int64(st.BadMagic), int64(st.QueueFull), int64(st.NegativeLatency),
		st.AccumulatedLatencyNs, st.MinLatencyNs, st.MaxLatencyNs, st.MeanLatencyNs,
		r.Err,
	)
	if err != nil {
		return fmt.Errorf("runstore: record %s: %w", r.ID, err)
	}
	return nil
}

// Get loads one run.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM runs ORDER BY started_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	return out, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.insert.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("runstore: close: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Run, error) {
	var (
		r                 Run
		started, ended    int64
		cfgJSON           string
		recv, proc, drop  int64
		malf, magic, full int64
		neg               int64
	)
	err := sc.Scan(&r.ID, &started, &ended, &r.Mode, &cfgJSON,
		&recv, &proc, &drop, &malf, &magic, &full, &neg,
		&r.Stats.AccumulatedLatencyNs, &r.Stats.MinLatencyNs, &r.Stats.MaxLatencyNs, &r.Stats.MeanLatencyNs,
		&r.Err)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("runstore: scan: %w", err)
	}
	if err := sonnet.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return Run{}, fmt.Errorf("runstore: decode config of %s: %w", r.ID, err)
	}

	r.StartedAt = time.Unix(0, started)
	r.EndedAt = time.Unix(0, ended)
	r.Stats.Received = uint64(recv)
	r.Stats.Processed = uint64(proc)
	r.Stats.Dropped = uint64(drop)
	r.Stats.Malformed = uint64(malf)
	r.Stats.BadMagic = uint64(magic)
	r.Stats.QueueFull = uint64(full)
	r.Stats.NegativeLatency = uint64(neg)
	return r, nil
}
