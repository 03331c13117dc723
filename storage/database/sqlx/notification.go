package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/notification"
)

type notificationRow struct {
	ID        int64       `db:"id"`
	AccountID int64       `db:"account_id"`
	Title     string      `db:"title"`
	Message   string      `db:"message"`
	Link      null.String `db:"link"`
	IsRead    bool        `db:"is_read"`
	CreatedAt time.Time   `db:"created_at"`
}

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{repository{exec: exec}}
}

// CreateNotifications inserts every row with a single statement.
func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification, exec ...core.DBExecutor) error {
	if len(notifs) == 0 {
		return nil
	}
	values := make([]string, 0, len(notifs))
	args := make([]interface{}, 0, len(notifs)*6)
	for _, n := range notifs {
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, n.AccountID, n.Title, n.Message, null.NewString(n.Link, n.Link != ""), n.IsRead, n.CreatedAt.UTC())
	}
	q := `INSERT INTO notifications (account_id, title, message, link, is_read, created_at) VALUES ` + strings.Join(values, ", ")
	_, err := repo.execute(ctx, repo.getExec(exec), q, args...)
	return errors.Wrap(err, "inserting notifications")
}

func (repo notificationRepository) filter(filter notification.QueryFilter) *where {
	w := new(where)
	w.add("account_id = ?", filter.AccountID)
	if filter.UnreadOnly {
		w.add("NOT is_read")
	}
	return w
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter, exec ...core.DBExecutor) ([]notification.Notification, error) {
	w := repo.filter(filter)
	q := `SELECT id, account_id, title, message, link, is_read, created_at FROM notifications` + w.String() +
		` ORDER BY created_at DESC, id DESC` + limitOffset(filter.Limit, filter.Offset)

	var rows []notificationRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, notification.Notification{
			ID:        r.ID,
			AccountID: r.AccountID,
			Title:     r.Title,
			Message:   r.Message,
			Link:      r.Link.String,
			IsRead:    r.IsRead,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return notifs, nil
}

func (repo notificationRepository) CountNotifications(ctx context.Context, filter notification.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.filter(filter)
	n, err := repo.count(ctx, repo.getExec(exec), `SELECT COUNT(*) FROM notifications`+w.String(), w.args...)
	return n, errors.Wrap(err, "counting notifications")
}

func (repo notificationRepository) MarkRead(ctx context.Context, accountID int64, ids []int64, exec ...core.DBExecutor) (int, error) {
	var w where
	w.add("account_id = ?", accountID)
	w.add("NOT is_read")
	if ids != nil {
		if len(ids) == 0 {
			return 0, nil
		}
		w.add("id IN (?)", ids)
	}
	n, err := repo.execute(ctx, repo.getExec(exec), `UPDATE notifications SET is_read = TRUE`+w.String(), w.args...)
	return n, errors.Wrap(err, "marking notifications read")
}
