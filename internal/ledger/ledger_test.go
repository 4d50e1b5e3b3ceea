package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"flowchat-gateway/internal/database"
	"flowchat-gateway/internal/models"
	"flowchat-gateway/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return New(db, logger.New("error"))
}

func createOutbound(t *testing.T, l *Ledger) *models.Message {
	t.Helper()
	msg, err := l.Create(context.Background(), CreateParams{
		Direction: models.DirectionOutbound,
		Content:   "Hello",
		Type:      models.TypeText,
		ContactID: "contact-1",
		Metadata:  map[string]interface{}{"provider": "twilio"},
	})
	require.NoError(t, err)
	return msg
}

func TestCreateDefaultsToPending(t *testing.T) {
	l := newTestLedger(t)
	msg := createOutbound(t, l)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.StatusPending, msg.Status)
	require.Len(t, msg.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, msg.StatusHistory[0].Status)
	assert.Equal(t, "twilio", msg.Metadata["provider"])
}

func TestUpdateStatusForwardTransitions(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	for _, status := range []models.Status{models.StatusSent, models.StatusDelivered, models.StatusRead} {
		updated, err := l.UpdateStatus(ctx, msg.ID, status, nil)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	final, err := l.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, final.Status)
	assert.Len(t, final.StatusHistory, 4)
}

func TestUpdateStatusNeverMovesBackward(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	_, err := l.UpdateStatus(ctx, msg.ID, models.StatusDelivered, nil)
	require.NoError(t, err)

	// A regressive callback lands in history but leaves status alone.
	updated, err := l.UpdateStatus(ctx, msg.ID, models.StatusSent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)
	assert.Len(t, updated.StatusHistory, 3)
}

func TestUpdateStatusFailedReachableFromAnyLiveState(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for _, start := range []models.Status{models.StatusPending, models.StatusSent, models.StatusDelivered, models.StatusRead} {
		msg, err := l.Create(ctx, CreateParams{
			Direction: models.DirectionOutbound,
			Content:   "x",
			Type:      models.TypeText,
			ContactID: "contact-1",
			Status:    start,
		})
		require.NoError(t, err)

		updated, err := l.UpdateStatus(ctx, msg.ID, models.StatusFailed, nil)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, updated.Status, "from %s", start)
	}
}

func TestUpdateStatusFailedIsTerminal(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	_, err := l.UpdateStatus(ctx, msg.ID, models.StatusFailed, nil)
	require.NoError(t, err)

	// A later disagreeing callback is recorded but not reverted.
	updated, err := l.UpdateStatus(ctx, msg.ID, models.StatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	assert.Len(t, updated.StatusHistory, 3)
}

func TestUpdateStatusReplayIsIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	first, err := l.UpdateStatus(ctx, msg.ID, models.StatusSent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, first.Status)

	// Replaying the identical callback appends a duplicate history entry
	// without corrupting the status.
	second, err := l.UpdateStatus(ctx, msg.ID, models.StatusSent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, second.Status)
	assert.Len(t, second.StatusHistory, 3)
}

func TestUpdateStatusUnknownSentinelKeepsCurrent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	updated, err := l.UpdateStatus(ctx, msg.ID, models.StatusUnknown, map[string]interface{}{
		"provider_status": "warbling",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, models.StatusUnknown, updated.StatusHistory[1].Status)
	assert.Equal(t, "warbling", updated.Metadata["provider_status"])
}

func TestUpdateStatusMergesMetadata(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	updated, err := l.UpdateStatus(ctx, msg.ID, models.StatusSent, map[string]interface{}{
		"provider_status": "queued",
	})
	require.NoError(t, err)

	// Existing keys survive the merge.
	assert.Equal(t, "twilio", updated.Metadata["provider"])
	assert.Equal(t, "queued", updated.Metadata["provider_status"])
}

func TestUpdateStatusUnknownID(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.UpdateStatus(context.Background(), "missing", models.StatusSent, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetProviderMessageID(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	msg := createOutbound(t, l)

	require.NoError(t, l.SetProviderMessageID(ctx, msg.ID, "SM123"))

	// Setting the same value again is a no-op; a different value is
	// refused.
	require.NoError(t, l.SetProviderMessageID(ctx, msg.ID, "SM123"))
	assert.Error(t, l.SetProviderMessageID(ctx, msg.ID, "SM999"))

	found, ok, err := l.FindByProviderMessageID(ctx, "SM123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.ID, found.ID)
}

func TestFindByProviderMessageIDAbsent(t *testing.T) {
	l := newTestLedger(t)

	_, ok, err := l.FindByProviderMessageID(context.Background(), "never-stored")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.FindByProviderMessageID(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindConversationNewestFirstPaginated(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Create(ctx, CreateParams{
			Direction: models.DirectionOutbound,
			Content:   fmt.Sprintf("message %d", i),
			Type:      models.TypeText,
			ContactID: "contact-1",
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	_, err := l.Create(ctx, CreateParams{
		Direction: models.DirectionInbound,
		Content:   "other conversation",
		Type:      models.TypeText,
		ContactID: "contact-2",
		Status:    models.StatusDelivered,
	})
	require.NoError(t, err)

	page, err := l.FindConversation(ctx, "contact-1", 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "message 4", page[0].Content)

	rest, err := l.FindConversation(ctx, "contact-1", 3, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "message 1", rest[0].Content)
}
