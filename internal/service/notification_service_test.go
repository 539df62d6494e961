package service

import (
	"context"
	"testing"

	"realtyhub/internal/database"
	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		n := &models.Notification{RecipientID: 4, Kind: models.NotificationJobAssigned, Title: "Job", Message: "Fix"}
		require.NoError(t, db.CreateNotification(ctx, n))
		ids = append(ids, n.ID)
	}

	pusher := &recordingPusher{}
	svc := NewNotificationService(db, pusher)

	list, err := svc.List(ctx, 4, false, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	count, err := svc.MarkRead(ctx, 4, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.MarkRead(ctx, 5, ids[1])
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err = svc.MarkAllRead(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, []int{2, 0}, pusher.counts[4], "every read mutation broadcasts the count")

	unread, err := svc.List(ctx, 4, true, 1000)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
