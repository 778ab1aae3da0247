// package migrations applies a linear sequence of schema changes.
// The number of applied statements is kept in PRAGMA user_version.
package migrations

import (
	"context"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"hwtrellis.org/trellis/internal/dbutil"
)

// State is a schema, described by the statements which produce it.
type State struct {
	stmts []string
}

func InitialState() *State {
	return &State{}
}

// ApplyStmt returns a new State with stmt applied after x.
func (x *State) ApplyStmt(stmt string) *State {
	return &State{stmts: append(slices.Clone(x.stmts), stmt)}
}

func (x *State) Version() int {
	return len(x.stmts)
}

// Migrate applies any statements in target which the database has not seen.
func Migrate(ctx context.Context, db *sqlx.DB, target *State) error {
	return dbutil.DoTx(ctx, db, func(tx *sqlx.Tx) error {
		var current int
		if err := tx.GetContext(ctx, &current, `PRAGMA user_version`); err != nil {
			return err
		}
		if current > target.Version() {
			return fmt.Errorf("migrations: database is at version %d, newer than %d", current, target.Version())
		}
		for i := current; i < target.Version(); i++ {
			if _, err := tx.ExecContext(ctx, target.stmts[i]); err != nil {
				return fmt.Errorf("migrations: applying statement %d: %w", i, err)
			}
		}
		if current < target.Version() {
			logctx.Info(ctx, "migrated database", zap.Int("from", current), zap.Int("to", target.Version()))
		}
		// PRAGMA does not accept parameters
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target.Version()))
		return err
	})
}
