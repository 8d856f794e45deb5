package services

import (
	"context"
	"testing"

	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := f.notify.Create(ctx, NewNotification{UserID: "u1", Type: models.NotifyCoinsRefunded, Title: "t", Body: "b"})
		require.NoError(t, err)
		assert.False(t, n.Read)
		assert.Nil(t, n.RelatedID)
		ids = append(ids, n.ID)
	}
	_, err := f.notify.Create(ctx, NewNotification{UserID: "u2", Type: models.NotifyMatchApproved, RelatedID: "m1", RelatedKind: "match_request"})
	require.NoError(t, err)

	list, err := f.notify.ListForUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)

	n, err := f.notify.MarkRead(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, n.Read)

	count, err := f.notify.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	changed, err := f.notify.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	count, err = f.notify.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = f.notify.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.notify.MarkRead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := f.notify.ListForUser(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
