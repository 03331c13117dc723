// Package sqlxrepos implements the repositories on Postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectRows runs a `?` placeholder query and scans every row into dest, a pointer to a slice of db-tagged structs.
func (repo repository) selectRows(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := expand(query, args)
	if err != nil {
		return err
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

func (repo repository) queryRow(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) *sql.Row {
	return exec.QueryRowContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
}

func (repo repository) execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	query, args, err := expand(query, args)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo repository) count(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	query, args, err := expand(query, args)
	if err != nil {
		return 0, err
	}
	var n int
	err = exec.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// expand binds slice arguments of IN clauses and rebinds placeholders for lib/pq.
func expand(query string, args []interface{}) (string, []interface{}, error) {
	for _, arg := range args {
		switch arg.(type) {
		case []int64, []string:
			q, a, err := sqlx.In(query, args...)
			if err != nil {
				return "", nil, errors.Wrap(err, "expanding IN arguments")
			}
			query, args = q, a
			return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

// where accumulates AND conditions.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limitOffset(limit, offset int) string {
	var s string
	if limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", offset)
	}
	return s
}

func likePattern(kw string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(kw) + "%"
}
