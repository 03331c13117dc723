// Package inmemdb keeps every table in memory. It backs the tests and DEV runs without Postgres.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

type (
	DB struct {
		mu   sync.RWMutex // guards the tables
		txMu sync.Mutex   // one transaction at a time
		seq  map[string]int64
		tables
	}

	tables struct {
		accounts      map[int64]account.Account
		profiles      map[int64]account.Profile
		scenarios     map[int64]scenario.Scenario
		submissions   map[int64]submission.Submission
		requirements  map[int64]submission.Requirement
		feedback      map[int64]submission.Feedback
		srsDocuments  map[int64]submission.SRSDocument
		notifications map[int64]notification.Notification
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		seq: make(map[string]int64),
		tables: tables{
			accounts:      make(map[int64]account.Account),
			profiles:      make(map[int64]account.Profile),
			scenarios:     make(map[int64]scenario.Scenario),
			submissions:   make(map[int64]submission.Submission),
			requirements:  make(map[int64]submission.Requirement),
			feedback:      make(map[int64]submission.Feedback),
			srsDocuments:  make(map[int64]submission.SRSDocument),
			notifications: make(map[int64]notification.Notification),
		},
	}
}

// nextID works like a sequence: ids are never reused, even after a rollback. Callers hold db.mu.
func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

var errNoSQL = errors.New("inmemdb: transactions do not run SQL")

// tx is the executor InTx hands to fn. It records how to undo each write made through it.
type tx struct {
	undo []func()
}

func (*tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (*tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (*tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

// txOf returns the transaction a repository call belongs to, or nil for a standalone write.
func txOf(exec []core.DBExecutor) *tx {
	if len(exec) == 0 {
		return nil
	}
	t, _ := exec[0].(*tx)
	return t
}

// remember saves the current state of table[id] so a rollback can restore it.
func remember[T any](t *tx, table map[int64]T, id int64) {
	if t == nil {
		return
	}
	prev, existed := table[id]
	t.undo = append(t.undo, func() {
		if existed {
			table[id] = prev
		} else {
			delete(table, id)
		}
	})
}

// put and remove write a row. Callers hold db.mu.
func put[T any](t *tx, table map[int64]T, id int64, row T) {
	remember(t, table, id)
	table[id] = row
}

func remove[T any](t *tx, table map[int64]T, id int64) {
	remember(t, table, id)
	delete(table, id)
}

// InTx runs fn with a *tx executor. Transactions run one at a time. When fn fails only the rows written
// through its executor are restored; standalone writes made meanwhile are kept.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := new(tx)
	if err := fn(t); err != nil {
		db.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		db.mu.Unlock()
		return err
	}
	return nil
}

// Reset empties every table; used between tests.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	fresh := Open()
	db.seq = fresh.seq
	db.tables = fresh.tables
}

// deleteSubmissions removes the matching submissions with their children. Callers hold db.mu.
func (db *DB) deleteSubmissions(t *tx, match func(submission.Submission) bool) {
	for id, sub := range db.submissions {
		if !match(sub) {
			continue
		}
		remove(t, db.submissions, id)
		for rid, r := range db.requirements {
			if r.SubmissionID == id {
				remove(t, db.requirements, rid)
			}
		}
		for fid, f := range db.feedback {
			if f.SubmissionID == id {
				remove(t, db.feedback, fid)
			}
		}
		for did, d := range db.srsDocuments {
			if d.SubmissionID == id {
				remove(t, db.srsDocuments, did)
			}
		}
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
