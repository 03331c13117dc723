// Package testutil wires the services on top of the in-memory backend and builds fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/dashboard"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
	emailsvc "github.com/thejadex/RE-VLab/services/email"
	inmemdb "github.com/thejadex/RE-VLab/storage/database/inmem"
)

// Env holds a complete service graph over a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	AccountSvc      *account.Service
	ScenarioSvc     *scenario.Service
	SubmissionSvc   *submission.Service
	NotificationSvc *notification.Service
	DashboardSvc    *dashboard.Service
}

func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:         "RE-VLab",
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:8000",
		Server: core.ServerConfig{
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			SessionTTL:      time.Hour,
			DisableReqLogs:  true,
		},
	}
	conf.SetDefaultFromEmail("RE-VLab <noreply@revlab.test>")
	return conf
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	account.LoadCommonPasswords(nil)
	return validate, translator
}

func NewEnv() *Env {
	conf := NewConfig()
	db := inmemdb.Open()
	mail := emailsvc.NewConsoleServiceMock(conf)
	validate, translator := NewValidator()

	accSvc := account.NewService(inmemdb.NewAccountRepository(db), db)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), mail, conf)
	scSvc := scenario.NewService(inmemdb.NewScenarioRepository(db), db, accSvc, notifSvc, validate)
	subSvc := submission.NewService(inmemdb.NewSubmissionRepository(db), db, scSvc, accSvc, notifSvc, validate)

	return &Env{
		Conf:            conf,
		DB:              db,
		Mail:            mail,
		Validate:        validate,
		Translator:      translator,
		AccountSvc:      accSvc,
		ScenarioSvc:     scSvc,
		SubmissionSvc:   subSvc,
		NotificationSvc: notifSvc,
		DashboardSvc:    dashboard.NewService(accSvc, scSvc, subSvc),
	}
}

// Reset empties the database and forgets the sent emails.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mail.Reset()
}

func CreateAccount(t testing.TB, env *Env, seed account.Seed) account.Principal {
	t.Helper()
	if seed.Password == "" {
		seed.Password = "Secret-pwd-123"
	}
	p, _, err := env.AccountSvc.EnsureAccount(context.Background(), seed)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return p
}

func CreateStudent(t testing.TB, env *Env, uname, firstName, lastName string) account.Principal {
	t.Helper()
	return CreateAccount(t, env, account.Seed{
		Username:  uname,
		FirstName: firstName,
		LastName:  lastName,
		Email:     uname + "@revlab.test",
	})
}

func CreateAdmin(t testing.TB, env *Env, uname string) account.Principal {
	t.Helper()
	return CreateAccount(t, env, account.Seed{
		Username:    uname,
		Email:       uname + "@revlab.test",
		IsSuperuser: true,
	})
}

func CreateScenario(t testing.TB, env *Env, admin account.Principal, title string, active bool) scenario.Scenario {
	t.Helper()
	data := scenario.Data{
		Title:        title,
		Difficulty:   scenario.DifficultyBeginner,
		Introduction: "Introduction to " + title,
		Aim:          "Aim of " + title,
		Objectives:   "Objectives of " + title,
		Description:  "Description of " + title,
		IsActive:     &active,
	}
	sc, err := env.ScenarioSvc.Create(context.Background(), admin, data)
	if err != nil {
		t.Fatalf("CreateScenario() failed: %v", err)
	}
	return sc
}

// StartSubmission returns the student's draft for the scenario.
func StartSubmission(t testing.TB, env *Env, student account.Principal, sc scenario.Scenario) submission.Submission {
	t.Helper()
	sub, err := env.SubmissionSvc.GetOrCreate(context.Background(), sc.ID, student.ID())
	if err != nil {
		t.Fatalf("StartSubmission() failed: %v", err)
	}
	return sub
}

func AddRequirement(t testing.TB, env *Env, student account.Principal, sub submission.Submission, typ, title string) submission.Requirement {
	t.Helper()
	req, err := env.SubmissionSvc.AddRequirement(context.Background(), student, sub.ID, submission.RequirementData{
		Type:        typ,
		Title:       title,
		Description: title + " description",
		Priority:    submission.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("AddRequirement() failed: %v", err)
	}
	return req
}

func Submit(t testing.TB, env *Env, student account.Principal, sub submission.Submission) submission.Submission {
	t.Helper()
	sub, err := env.SubmissionSvc.Submit(context.Background(), student, sub.ID)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return sub
}

func GiveFeedback(t testing.TB, env *Env, admin account.Principal, sub submission.Submission, title string) submission.Feedback {
	t.Helper()
	fb, err := env.SubmissionSvc.AttachFeedback(context.Background(), admin, sub.ID, submission.FeedbackData{
		Type:    submission.FeedbackGeneral,
		Title:   title,
		Content: title + " content",
	})
	if err != nil {
		t.Fatalf("GiveFeedback() failed: %v", err)
	}
	return fb
}
