package notification

import (
	"time"

	"github.com/thejadex/RE-VLab/core"
)

const PageSize = 10

type Notification struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Notice is the content fanned out to every recipient.
type Notice struct {
	Title   string
	Message string
	Link    string
}

type QueryFilter struct {
	AccountID  int64
	UnreadOnly bool
	Limit      int
	Offset     int
}

type List struct {
	Notifications []Notification `json:"notifications"`
	Page          core.Page      `json:"page"`
}

func (l List) IDs() []int64 {
	ids := make([]int64, 0, len(l.Notifications))
	for _, n := range l.Notifications {
		ids = append(ids, n.ID)
	}
	return ids
}

// Outbox collects the emails of the notifications created during a transaction.
// They are sent by Service.Flush once the transaction has committed.
type Outbox struct {
	messages []*core.EmailMessage
}

func (o *Outbox) add(msg *core.EmailMessage) {
	o.messages = append(o.messages, msg)
}

func (o *Outbox) Len() int {
	if o == nil {
		return 0
	}
	return len(o.messages)
}
