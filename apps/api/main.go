package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/thejadex/RE-VLab/apps/api/echo"
	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/dashboard"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/session"
	"github.com/thejadex/RE-VLab/core/submission"
	emailsvc "github.com/thejadex/RE-VLab/services/email"
	logsvc "github.com/thejadex/RE-VLab/services/logger"
	"github.com/thejadex/RE-VLab/storage/database"
	inmemdb "github.com/thejadex/RE-VLab/storage/database/inmem"
	sqlxrepos "github.com/thejadex/RE-VLab/storage/database/sqlx"
	sessionstore "github.com/thejadex/RE-VLab/storage/session"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up loggers
	apiZap, err := logsvc.NewZap(conf, "api")
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(apiZap, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Sync()

	dbLogger := logsvc.NewRollbarLogger(apiZap.Named("db"), conf)

	// set up storage
	repos, closeDB, err := setUpStorage(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	sessions, err := setUpSessions(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session store: %v", err), err)
	}

	// set up services
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	accSvc := account.NewService(repos.accounts, repos.tx)
	notifSvc := notification.NewService(repos.notifications, mailSvc, conf)
	scSvc := scenario.NewService(repos.scenarios, repos.tx, accSvc, notifSvc, validate)
	subSvc := submission.NewService(repos.submissions, repos.tx, scSvc, accSvc, notifSvc, validate)
	dashSvc := dashboard.NewService(accSvc, scSvc, subSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err = core.ParseEmailTemplates(); err != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	account.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Sessions:        sessions,
		AccountSvc:      accSvc,
		ScenarioSvc:     scSvc,
		SubmissionSvc:   subSvc,
		NotificationSvc: notifSvc,
		DashboardSvc:    dashSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

type repositories struct {
	tx            core.Transactor
	accounts      account.Repository
	scenarios     scenario.Repository
	submissions   submission.Repository
	notifications notification.Repository
}

// setUpStorage opens Postgres (creating and migrating the database if needed),
// or keeps everything in memory when database.engine is "inmem".
func setUpStorage(conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		return repositories{
			tx:            db,
			accounts:      inmemdb.NewAccountRepository(db),
			scenarios:     inmemdb.NewScenarioRepository(db),
			submissions:   inmemdb.NewSubmissionRepository(db),
			notifications: inmemdb.NewNotificationRepository(db),
		}, func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, nil, err
	}
	return repositories{
		tx:            database.NewTransactor(db),
		accounts:      sqlxrepos.NewAccountRepository(db),
		scenarios:     sqlxrepos.NewScenarioRepository(db),
		submissions:   sqlxrepos.NewSubmissionRepository(db),
		notifications: sqlxrepos.NewNotificationRepository(db),
	}, db.Close, nil
}

// setUpSessions uses Redis when redis.addr is set, and an in-process store otherwise.
func setUpSessions(conf *core.Config, logger core.Logger) (session.Store, error) {
	if conf.Redis.Addr == "" {
		logger.Warn("redis.addr not set: sessions are kept in memory")
		return sessionstore.NewMemoryStore(), nil
	}
	store := sessionstore.NewRedisStore(sessionstore.NewRedisClient(conf))
	if err := store.Ping(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
