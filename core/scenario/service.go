package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("scenario not found")
	errForbidden = core.NewPermissionError("only admins can manage scenarios")
)

type (
	Repository interface {
		CreateScenario(ctx context.Context, sc Scenario, exec ...core.DBExecutor) (Scenario, error)
		UpdateScenario(ctx context.Context, sc Scenario, exec ...core.DBExecutor) (Scenario, error)
		// DeleteScenario also removes the scenario's submissions and their children.
		DeleteScenario(ctx context.Context, id int64, exec ...core.DBExecutor) error
		GetScenario(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Scenario, error)
		QueryScenarios(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Scenario, error)
		CountScenarios(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// QueryForStudent lists the active scenarios with the student's submission, if any.
		QueryForStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]Listed, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		accSvc   *account.Service
		notifSvc *notification.Service
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	accSvc *account.Service,
	notifSvc *notification.Service,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, tx: tx, accSvc: accSvc, notifSvc: notifSvc, validate: validate}
}

// Create stores a new scenario. When it is active, every student is notified in the same transaction.
func (svc *Service) Create(ctx context.Context, p account.Principal, data Data) (Scenario, error) {
	if !p.IsAdmin() {
		return Scenario{}, errForbidden
	}
	if err := data.Validate(svc.validate); err != nil {
		return Scenario{}, err
	}

	now := time.Now().UTC()
	sc := Scenario{CreatedBy: p.ID(), CreatedAt: now, UpdatedAt: now}
	data.apply(&sc)

	var outbox notification.Outbox
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sc, err = svc.repo.CreateScenario(ctx, sc, exec); err != nil {
			return errors.Wrap(err, "creating scenario")
		}
		if !sc.IsActive {
			return nil
		}

		students, err := svc.accSvc.ListByRole(ctx, account.RoleStudent, exec)
		if err != nil {
			return errors.Wrap(err, "listing students")
		}
		return svc.notifSvc.Notify(ctx, &outbox, students, notification.Notice{
			Title:   "New Scenario Available",
			Message: fmt.Sprintf("A new scenario \"%s\" has been added and is ready for you to work on.", sc.Title),
			Link:    fmt.Sprintf("/scenarios/%d/", sc.ID),
		}, exec)
	})
	if err != nil {
		return Scenario{}, err
	}
	svc.notifSvc.Flush(&outbox)
	return sc, nil
}

func (svc *Service) Update(ctx context.Context, p account.Principal, id int64, data Data) (Scenario, error) {
	if !p.IsAdmin() {
		return Scenario{}, errForbidden
	}
	if err := data.Validate(svc.validate); err != nil {
		return Scenario{}, err
	}
	sc, err := svc.repo.GetScenario(ctx, GetFilter{ID: id})
	if err != nil {
		return Scenario{}, err
	}
	data.apply(&sc)
	sc.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateScenario(ctx, sc)
}

func (svc *Service) Delete(ctx context.Context, p account.Principal, id int64) (Scenario, error) {
	if !p.IsAdmin() {
		return Scenario{}, errForbidden
	}
	var sc Scenario
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sc, err = svc.repo.GetScenario(ctx, GetFilter{ID: id}, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteScenario(ctx, id, exec), "deleting scenario")
	})
	return sc, err
}

func (svc *Service) Get(ctx context.Context, id int64, exec ...core.DBExecutor) (Scenario, error) {
	return svc.repo.GetScenario(ctx, GetFilter{ID: id}, exec...)
}

// GetActive returns ErrNotFound for inactive scenarios.
func (svc *Service) GetActive(ctx context.Context, id int64) (Scenario, error) {
	return svc.repo.GetScenario(ctx, GetFilter{ID: id, ActiveOnly: true})
}

func (svc *Service) ListActive(ctx context.Context, studentID int64) ([]Listed, error) {
	listed, err := svc.repo.QueryForStudent(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying active scenarios")
	}
	for i := range listed {
		if listed[i].SubmissionStatus == "" {
			listed[i].SubmissionStatus = StatusNotStarted
		}
	}
	return listed, nil
}

func (svc *Service) ListAll(ctx context.Context) ([]Scenario, error) {
	return svc.repo.QueryScenarios(ctx, QueryFilter{})
}

// RecentByCreator returns the newest scenarios created by creatorID.
func (svc *Service) RecentByCreator(ctx context.Context, creatorID int64, limit int) ([]Scenario, error) {
	return svc.repo.QueryScenarios(ctx, QueryFilter{CreatedBy: creatorID, Limit: limit})
}

func (svc *Service) Count(ctx context.Context, activeOnly bool) (int, error) {
	return svc.repo.CountScenarios(ctx, QueryFilter{ActiveOnly: activeOnly})
}
