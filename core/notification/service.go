package notification

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
)

const emailTemplate = "notification"

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification, exec ...core.DBExecutor) error
		// QueryNotifications returns the newest notifications first.
		QueryNotifications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Notification, error)
		CountNotifications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// MarkRead marks the unread notifications of accountID among ids as read; a nil ids marks them all.
		MarkRead(ctx context.Context, accountID int64, ids []int64, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		emailSvc core.EmailService
		conf     *core.Config
	}
)

func NewService(repo Repository, emailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, emailSvc: emailSvc, conf: conf}
}

// Notify creates one notification per recipient with exec, and queues the matching emails in outbox.
func (svc *Service) Notify(ctx context.Context, outbox *Outbox, recipients []account.Principal, notice Notice, exec ...core.DBExecutor) error {
	if len(recipients) == 0 {
		return nil
	}

	now := time.Now().UTC()
	notifs := make([]Notification, 0, len(recipients))
	for _, r := range recipients {
		notifs = append(notifs, Notification{
			AccountID: r.Account.ID,
			Title:     notice.Title,
			Message:   notice.Message,
			Link:      notice.Link,
			CreatedAt: now,
		})
	}
	if err := svc.repo.CreateNotifications(ctx, notifs, exec...); err != nil {
		return errors.Wrap(err, "creating notifications")
	}

	if outbox != nil {
		for _, r := range recipients {
			if r.Account.Email == "" {
				continue
			}
			outbox.add(svc.newEmail(r.Account, notice))
		}
	}
	return nil
}

func (svc *Service) newEmail(acc account.Account, notice Notice) *core.EmailMessage {
	link := notice.Link
	if link != "" && svc.conf != nil {
		link = strings.TrimSuffix(svc.conf.FrontendBaseURL, "/") + link
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: acc.DisplayName(), Address: acc.Email}},
		Subject:      notice.Title,
		TemplateName: emailTemplate,
		TemplateData: map[string]string{
			"Title":   notice.Title,
			"Message": notice.Message,
			"Link":    link,
		},
	}
}

// Flush sends the queued emails. Call it after the transaction that filled outbox committed.
func (svc *Service) Flush(outbox *Outbox) {
	if outbox.Len() == 0 || svc.emailSvc == nil {
		return
	}
	svc.emailSvc.SendMessages(outbox.messages...)
	outbox.messages = nil
}

// List returns a page of the account's notifications, newest first. It does not change their read state.
func (svc *Service) List(ctx context.Context, accountID int64, pageNumber int) (List, error) {
	total, err := svc.repo.CountNotifications(ctx, QueryFilter{AccountID: accountID})
	if err != nil {
		return List{}, errors.Wrap(err, "counting notifications")
	}

	page := core.NewPage(pageNumber, PageSize, total)
	notifs, err := svc.repo.QueryNotifications(ctx, QueryFilter{
		AccountID: accountID,
		Limit:     page.Size,
		Offset:    page.Offset(),
	})
	if err != nil {
		return List{}, errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	return List{Notifications: notifs, Page: page}, nil
}

func (svc *Service) MarkRead(ctx context.Context, accountID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.MarkRead(ctx, accountID, ids)
}

func (svc *Service) MarkAllRead(ctx context.Context, accountID int64) (int, error) {
	return svc.repo.MarkRead(ctx, accountID, nil)
}

func (svc *Service) UnreadCount(ctx context.Context, accountID int64) (int, error) {
	return svc.repo.CountNotifications(ctx, QueryFilter{AccountID: accountID, UnreadOnly: true})
}
