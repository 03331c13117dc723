package inmemdb

import (
	"context"
	"sort"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs []notification.Notification, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, n := range notifs {
		n.ID = repo.db.nextID("notifications")
		put(txOf(exec), repo.db.notifications, n.ID, n)
	}
	return nil
}

func (repo *notificationRepository) query(filter notification.QueryFilter) []notification.Notification {
	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.AccountID != filter.AccountID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		notifs = append(notifs, n)
	}
	sort.Slice(notifs, func(i, j int) bool {
		if !notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
		}
		return notifs[i].ID > notifs[j].ID
	})
	return notifs
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter, _ ...core.DBExecutor) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return paginate(repo.query(filter), filter.Offset, filter.Limit), nil
}

func (repo *notificationRepository) CountNotifications(_ context.Context, filter notification.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, accountID int64, ids []int64, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var wanted map[int64]bool
	if ids != nil {
		wanted = make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	var n int
	for id, notif := range repo.db.notifications {
		if notif.AccountID != accountID || notif.IsRead || (wanted != nil && !wanted[id]) {
			continue
		}
		notif.IsRead = true
		put(txOf(exec), repo.db.notifications, id, notif)
		n++
	}
	return n, nil
}
