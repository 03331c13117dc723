package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/thejadex/RE-VLab/core"
	appfs "github.com/thejadex/RE-VLab/fs"
)

const migrationsDir = "migrations"

// dsn builds a postgres URL for dbName. The admin credentials are used for bootstrap only.
func dsn(conf *core.Config, dbName string, admin bool) string {
	dbc := conf.Database
	user := url.UserPassword(dbc.User, dbc.Password)
	if admin && dbc.AdminUser != "" {
		user = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	return (&url.URL{
		Scheme:   dbc.Engine,
		User:     user,
		Host:     dbc.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}).String()
}

// Open connects to the application database and waits until it answers.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(conf, conf.Database.Name, false))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const (
	readyAttempts = 30
	readyBackoff  = 100 * time.Millisecond
)

// waitReady pings db with a linearly growing pause, for databases still booting next to the app.
func waitReady(db *sql.DB) (err error) {
	for i := 1; i <= readyAttempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(i) * readyBackoff)
	}
	return errors.Wrap(err, "database not ready")
}

func exists(db *sql.DB, query string, arg string) (bool, error) {
	var found bool
	err := db.QueryRow(query, arg).Scan(&found)
	return found, err
}

// bootstrap connects with the given credentials to the maintenance database and runs fn.
func bootstrap(conf *core.Config, admin bool, fn func(db *sql.DB) error) error {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, "postgres", admin))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = db.Close() }()

	if err = waitReady(db); err != nil {
		return err
	}
	return fn(db)
}

func ensureRole(db *sql.DB, conf *core.Config) error {
	role := conf.Database.User
	if role == "" {
		return nil
	}
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role)
	if err != nil {
		return errors.Wrap(err, "looking up app role")
	}
	if found {
		return nil
	}

	// CREATE ROLE takes no bind parameters.
	stmt := fmt.Sprintf("CREATE ROLE %s LOGIN CREATEDB ENCRYPTED PASSWORD %s",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(conf.Database.Password))
	_, err = db.Exec(stmt)
	return errors.Wrap(err, "creating app role")
}

func ensureDatabase(db *sql.DB, conf *core.Config) error {
	name := conf.Database.Name
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name)
	if err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if found {
		return nil
	}
	_, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// CreateIfNotExist creates the app role (as admin) and then the app database (as the app role, so it owns it).
func CreateIfNotExist(conf *core.Config) error {
	if err := bootstrap(conf, true, func(db *sql.DB) error { return ensureRole(db, conf) }); err != nil {
		return err
	}
	return bootstrap(conf, false, func(db *sql.DB) error { return ensureDatabase(db, conf) })
}

func setUpGoose() error {
	goose.SetBaseFS(appfs.FS)
	return goose.SetDialect("postgres")
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	return RunGoose(db, "up")
}

// RunGoose runs a goose command (up, down, status, redo, version...) against the embedded migrations.
func RunGoose(db *sql.DB, command string, args ...string) error {
	if err := setUpGoose(); err != nil {
		return errors.Wrap(err, "setting up goose")
	}
	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running goose %s", command)
	}
	return nil
}

// Transactor runs business operations in Postgres transactions.
type Transactor struct {
	db core.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db core.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
