package service

import (
	"context"
	"testing"

	"adgrid/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPurchaseTracker_StatusLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.tracker.GetPurchaseStatus(ctx, "user-a", 4)
	require.NoError(t, err)
	assert.Nil(t, status)

	f.pending(t, "order_1", "user-a", 4)
	status, err = f.tracker.GetPurchaseStatus(ctx, "user-a", 4)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, model.PurchasePending, status.Status)

	done, err := f.tracker.MarkCompleted(ctx, "user-a", 4, "order_1", "pay_1")
	require.NoError(t, err)
	assert.True(t, done)

	status, err = f.tracker.GetPurchaseStatus(ctx, "user-a", 4)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseCompleted, status.Status)
	assert.Equal(t, "order_1", status.OrderID)
}

func TestPurchaseTracker_MarkCompletedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_1", "user-a", 2)

	first, err := f.tracker.MarkCompleted(ctx, "user-a", 2, "order_1", "pay_1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.tracker.MarkCompleted(ctx, "user-a", 2, "order_1", "pay_1")
	require.NoError(t, err)
	assert.False(t, second)

	var count int64
	require.NoError(t, f.db.Model(&model.Purchase{}).Where("box_index = ?", 2).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPurchaseTracker_RejectsOtherUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_a", "user-a", 6)
	f.pending(t, "order_b", "user-b", 6)

	_, err := f.tracker.MarkCompleted(ctx, "user-a", 6, "order_a", "pay_a")
	require.NoError(t, err)

	_, err = f.tracker.MarkCompleted(ctx, "user-b", 6, "order_b", "pay_b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, msgBoxTaken, PublicMessage(err, ""))

	owners, err := f.tracker.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{6: "user-a"}, owners)

	p, err := f.tracker.FindOrder(ctx, "order_b")
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePending, p.Status)
}

func TestPurchaseTracker_SameUserSecondOrderConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_1", "user-a", 1)
	f.pending(t, "order_2", "user-a", 1)

	_, err := f.tracker.MarkCompleted(ctx, "user-a", 1, "order_1", "pay_1")
	require.NoError(t, err)

	_, err = f.tracker.MarkCompleted(ctx, "user-a", 1, "order_2", "pay_2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPurchaseTracker_OrderBoundToAnotherBox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_1", "user-a", 1)

	_, err := f.tracker.MarkCompleted(ctx, "user-a", 9, "order_1", "pay_1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.tracker.MarkCompleted(ctx, "user-b", 1, "order_1", "pay_1")
	assert.ErrorIs(t, err, ErrValidation)

	owners, err := f.tracker.Owners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestPurchaseTracker_CompletesUnreservedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	done, err := f.tracker.MarkCompleted(ctx, "user-a", 0, "order_free", "pay_1")
	require.NoError(t, err)
	assert.True(t, done)

	boxes, err := f.tracker.PurchasedBoxes(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, boxes)
}

func TestPurchaseTracker_FailedCanStillComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_1", "user-a", 3)

	failed, err := f.tracker.MarkFailed(ctx, "order_1", "card declined")
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, model.PurchaseFailed, failed.Status)

	done, err := f.tracker.MarkCompleted(ctx, "user-a", 3, "order_1", "pay_1")
	require.NoError(t, err)
	assert.True(t, done)

	p, err := f.tracker.FindOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseCompleted, p.Status)
	assert.Empty(t, p.FailureReason)
}

func TestPurchaseTracker_EnsureAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.tracker.EnsureAvailable(ctx, "user-a", 5))

	_, err := f.tracker.MarkCompleted(ctx, "user-a", 5, "order_1", "pay_1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.tracker.EnsureAvailable(ctx, "user-b", 5), ErrConflict)
	assert.ErrorIs(t, f.tracker.EnsureAvailable(ctx, "user-a", 5), ErrConflict)
}

func TestPurchaseTracker_LostRaceAtUpdateIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_a", "user-a", 4)

	raced := beforeUpdate(t, f.db, "test:rival_claim", func(tx *gorm.DB) error {
		box := 4
		return tx.Create(&model.Purchase{
			OrderID:    "order_b",
			UserID:     "user-b",
			BoxIndex:   box,
			Status:     model.PurchaseCompleted,
			PaymentID:  "pay_b",
			ClaimedBox: &box,
		}).Error
	})

	done, err := f.tracker.MarkCompleted(ctx, "user-a", 4, "order_a", "pay_a")

	require.True(t, *raced)
	assert.False(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, msgBoxTaken, PublicMessage(err, ""))

	p, err := f.tracker.FindOrder(ctx, "order_a")
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePending, p.Status)
}

func TestPurchaseTracker_ConcurrentRetryTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pending(t, "order_1", "user-a", 2)

	raced := beforeUpdate(t, f.db, "test:retry_claim", func(tx *gorm.DB) error {
		return tx.Exec("UPDATE purchases SET status = ?, payment_id = ?, claimed_box = ? WHERE order_id = ?",
			string(model.PurchaseCompleted), "pay_1", 2, "order_1").Error
	})

	res, err := f.payments.VerifyAndAuthorize(ctx, validInput("order_1", "pay_1", "user-a", 2))

	require.True(t, *raced)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Empty(t, f.publisher.types())

	p, err := f.tracker.FindOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseCompleted, p.Status)
}
