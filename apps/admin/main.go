package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
	emailsvc "github.com/thejadex/RE-VLab/services/email"
	logsvc "github.com/thejadex/RE-VLab/services/logger"
	"github.com/thejadex/RE-VLab/storage/database"
	sqlxrepos "github.com/thejadex/RE-VLab/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if conf.Database.Engine == "inmem" {
		log.Fatal("the admin CLI needs a postgres database")
	}

	adminZap, err := logsvc.NewZap(conf, "admin")
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(adminZap, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	tx := database.NewTransactor(db)
	accSvc := account.NewService(sqlxrepos.NewAccountRepository(db), tx)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), mailSvc, conf)
	scSvc := scenario.NewService(sqlxrepos.NewScenarioRepository(db), tx, accSvc, notifSvc, validate)
	subSvc := submission.NewService(sqlxrepos.NewSubmissionRepository(db), tx, scSvc, accSvc, notifSvc, validate)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		accSvc: accSvc,
		scSvc:  scSvc,
		subSvc: subSvc,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("command failed: %v", err), err)
		}
		os.Exit(1)
	}
}
