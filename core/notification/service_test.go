package notification_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
	testutil "github.com/thejadex/RE-VLab/tests"
)

var env = testutil.NewEnv()

func TestService_Notify(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	hero := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	mute := testutil.CreateAccount(t, env, account.Seed{Username: "mute"})

	var outbox notification.Outbox
	err := env.NotificationSvc.Notify(ctx, &outbox, []account.Principal{hero, mute}, notification.Notice{
		Title:   "Hello",
		Message: "World",
		Link:    "/scenarios/1/",
	})
	require.NoError(t, err)

	// accounts without an email only get the in-app notification
	assert.Equal(t, 1, outbox.Len())
	assert.Empty(t, env.Mail.SentMessages(), "nothing is sent before Flush")
	for _, p := range []account.Principal{hero, mute} {
		n, err := env.NotificationSvc.UnreadCount(ctx, p.ID())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	env.NotificationSvc.Flush(&outbox)
	assert.Zero(t, outbox.Len())
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "hero@revlab.test", msg.To[0].Address)
	assert.Equal(t, "Hero Student", msg.To[0].Name)
	assert.Contains(t, msg.TextContent, "World")
	assert.Contains(t, msg.TextContent, "http://localhost:8000/scenarios/1/")

	// flushing twice sends nothing new
	env.NotificationSvc.Flush(&outbox)
	assert.Len(t, env.Mail.SentMessages(), 1)

	assert.NoError(t, env.NotificationSvc.Notify(ctx, nil, nil, notification.Notice{Title: "nobody"}))
}

func TestService_ListAndMarkRead(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	hero := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	other := testutil.CreateStudent(t, env, "other", "", "")

	for i := 0; i < 15; i++ {
		err := env.NotificationSvc.Notify(ctx, nil, []account.Principal{hero}, notification.Notice{Title: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
	}

	empty, err := env.NotificationSvc.List(ctx, other.ID(), 3)
	require.NoError(t, err)
	assert.NotNil(t, empty.Notifications)
	assert.Empty(t, empty.Notifications)
	assert.Equal(t, 1, empty.Page.Number)

	first, err := env.NotificationSvc.List(ctx, hero.ID(), 1)
	require.NoError(t, err)
	require.Len(t, first.Notifications, notification.PageSize)
	assert.Equal(t, "n14", first.Notifications[0].Title)
	assert.Equal(t, 2, first.Page.NumPages)

	second, err := env.NotificationSvc.List(ctx, hero.ID(), 2)
	require.NoError(t, err)
	require.Len(t, second.Notifications, 5)
	assert.Equal(t, "n4", second.Notifications[0].Title)
	assert.True(t, second.Page.HasPrevious)

	n, err := env.NotificationSvc.MarkRead(ctx, other.ID(), first.IDs())
	require.NoError(t, err)
	assert.Zero(t, n, "only the recipient can mark them")

	n, err = env.NotificationSvc.MarkRead(ctx, hero.ID(), nil)
	require.NoError(t, err)
	assert.Zero(t, n, "no ids marks nothing")

	n, err = env.NotificationSvc.MarkRead(ctx, hero.ID(), first.IDs())
	require.NoError(t, err)
	assert.Equal(t, notification.PageSize, n)

	n, err = env.NotificationSvc.MarkRead(ctx, hero.ID(), first.IDs())
	require.NoError(t, err)
	assert.Zero(t, n, "already read")

	unread, err := env.NotificationSvc.UnreadCount(ctx, hero.ID())
	require.NoError(t, err)
	assert.Equal(t, 5, unread)

	n, err = env.NotificationSvc.MarkAllRead(ctx, hero.ID())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	unread, err = env.NotificationSvc.UnreadCount(ctx, hero.ID())
	require.NoError(t, err)
	assert.Zero(t, unread)
}
