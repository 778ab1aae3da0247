package tracedb

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hwtrellis.org/trellis/internal/dbutil"
	"hwtrellis.org/trellis/internal/migrations"
)

func OpenDB(p string) (*sqlx.DB, error) {
	return dbutil.Open(p)
}

func SetupDB(ctx context.Context, db *sqlx.DB) error {
	return migrations.Migrate(ctx, db, currentSchema)
}

var currentSchema = func() *migrations.State {
	x := migrations.InitialState()
	x = x.ApplyStmt(`CREATE TABLE blobs (
		id BLOB NOT NULL,
		data BLOB NOT NULL,

		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT`)
	x = x.ApplyStmt(`CREATE TABLE runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_name TEXT NOT NULL,
		adder TEXT NOT NULL,
		digest BLOB NOT NULL,
		segments INTEGER NOT NULL,
		overflows INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		lines INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		matched INTEGER,
		tai_sec INTEGER NOT NULL,
		tai_nsec INTEGER NOT NULL,

		FOREIGN KEY(digest) REFERENCES blobs(id)
	) STRICT`)
	x = x.ApplyStmt(`CREATE INDEX runs_case ON runs (case_name, id)`)
	return x
}()
