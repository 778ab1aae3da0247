// package tracedb keeps a history of decoder runs, and the traces they produced, in SQLite.
package tracedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"

	"hwtrellis.org/trellis"
	"hwtrellis.org/trellis/internal/cadata"
	"hwtrellis.org/trellis/internal/dbutil"
	"hwtrellis.org/trellis/trace"
)

type RunID = int64

// Run is a recorded decoder run.
type Run struct {
	ID       RunID           `db:"id"`
	CaseName string          `db:"case_name"`
	Adder    string          `db:"adder"`
	Digest   trellis.TraceID `db:"digest"`

	Segments   int    `db:"segments"`
	Overflows  int    `db:"overflows"`
	Steps      int    `db:"steps"`
	Lines      int    `db:"lines"`
	StopReason string `db:"stop_reason"`
	// Matched is set if the run was compared against an expected trace.
	Matched sql.NullBool `db:"matched"`

	TAISeconds int64 `db:"tai_sec"`
	TAINanos   int64 `db:"tai_nsec"`
}

// Timestamp returns the external TAI64N label of when the run was recorded.
func (r Run) Timestamp() string {
	return fmt.Sprintf("@%016x%08x", uint64(r.TAISeconds), uint32(r.TAINanos))
}

// NewRun fills in a Run from a summary, stamped with the current time.
func NewRun(caseName, adder string, sum *trace.Summary) Run {
	ts := tai64.Now()
	return Run{
		CaseName:   caseName,
		Adder:      adder,
		Digest:     sum.Digest,
		Segments:   sum.Segments,
		Overflows:  sum.Overflows,
		Steps:      sum.Steps,
		Lines:      sum.Lines,
		StopReason: sum.Reason.String(),
		TAISeconds: int64(ts.Seconds),
		TAINanos:   int64(ts.Nanoseconds),
	}
}

type ErrRunNotFound struct {
	ID RunID
}

func (e ErrRunNotFound) Error() string {
	return fmt.Sprintf("run %d not found", e.ID)
}

var _ cadata.Store = &DB{}

// DB is a run history and a content addressed store of traces.
type DB struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// Open opens the database at p and brings its schema up to date.
func Open(ctx context.Context, p string) (*DB, error) {
	db, err := OpenDB(p)
	if err != nil {
		return nil, err
	}
	if err := SetupDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// RecordRun stores the trace and the run which produced it.
// r.Digest must be the hash of trace.
func (s *DB) RecordRun(ctx context.Context, r Run, traceData []byte) (RunID, error) {
	if err := cadata.Check(trellis.Hash, r.Digest, traceData); err != nil {
		return 0, err
	}
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (RunID, error) {
		if _, err := postBlob(ctx, tx, traceData); err != nil {
			return 0, err
		}
		var id RunID
		err := tx.GetContext(ctx, &id, `INSERT INTO runs (
			case_name, adder, digest, segments, overflows, steps, lines, stop_reason, matched, tai_sec, tai_nsec
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			r.CaseName, r.Adder, r.Digest, r.Segments, r.Overflows, r.Steps, r.Lines, r.StopReason, r.Matched, r.TAISeconds, r.TAINanos,
		)
		return id, err
	})
}

func (s *DB) GetRun(ctx context.Context, id RunID) (*Run, error) {
	var r Run
	if err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound{ID: id}
		}
		return nil, err
	}
	return &r, nil
}

// GetTrace returns the trace recorded for a run.
func (s *DB) GetTrace(ctx context.Context, id RunID) ([]byte, error) {
	r, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, r.Digest)
}

// ListRuns returns the most recent runs first.
// If caseName is not empty, only runs of that case are returned.
func (s *DB) ListRuns(ctx context.Context, caseName string, limit int) ([]Run, error) {
	var runs []Run
	var err error
	if caseName == "" {
		err = s.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY id DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &runs, `SELECT * FROM runs WHERE case_name = ? ORDER BY id DESC LIMIT ?`, caseName, limit)
	}
	return runs, err
}

// Post stores a trace and returns its ID.
func (s *DB) Post(ctx context.Context, data []byte) (trellis.TraceID, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (trellis.TraceID, error) {
		return postBlob(ctx, tx, data)
	})
}

// Get returns the trace with the given ID, after checking that it hashes to id.
func (s *DB) Get(ctx context.Context, id trellis.TraceID) ([]byte, error) {
	var data []byte
	if err := s.db.GetContext(ctx, &data, `SELECT data FROM blobs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cadata.ErrNotFound{Key: id}
		}
		return nil, err
	}
	if err := cadata.Check(trellis.Hash, id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *DB) Exists(ctx context.Context, id trellis.TraceID) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blobs WHERE id = ?)`, id); err != nil {
		return false, err
	}
	return exists, nil
}

func postBlob(ctx context.Context, tx *sqlx.Tx, data []byte) (trellis.TraceID, error) {
	if len(data) > trellis.MaxTraceSize {
		return trellis.TraceID{}, cadata.ErrTooLarge
	}
	id := trellis.Hash(data)
	if _, err := tx.ExecContext(ctx, `INSERT INTO blobs (id, data) VALUES (?, ?) ON CONFLICT DO NOTHING`, id, data); err != nil {
		return trellis.TraceID{}, err
	}
	return id, nil
}
