package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// where accumulates `?`-placeholder predicates joined by AND.
type where struct {
	preds []string
	args  []interface{}
}

func (w *where) add(pred string, args ...interface{}) {
	w.preds = append(w.preds, pred)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.preds, " AND ")
}

// build expands slice arguments (IN clauses) & rebinds placeholders for postgres.
func build(query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

// validID reports whether `id` can be looked up in a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, constraint)
}

// trapNoRowsErr maps "no rows" to `notFound`.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
