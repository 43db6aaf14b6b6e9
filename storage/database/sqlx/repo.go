// Package sqlxrepos implements the repositories over PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
)

// extContext returns the executor handed by a service (eg. a transaction) or the repo DB.
func extContext(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		switch e := exec[0].(type) {
		case sqlx.ExtContext:
			return e
		case *sql.Tx:
			return &sqlx.Tx{Tx: e, Mapper: db.Mapper}
		}
	}
	return db
}

// wrapErr annotates err with msg. A lost database connection becomes a shutdown error:
// the app cannot serve pages without its database.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return core.NewShutdownError(fmt.Sprintf("%s: database connection lost: %v", msg, err))
	}
	return errors.Wrap(err, msg)
}
