package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"adgrid/internal/model"

	"gorm.io/gorm"
)

type PurchaseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Purchase, error)
	FindClaim(ctx context.Context, tx *gorm.DB, boxIndex int) (*model.Purchase, error)
	FindLatest(ctx context.Context, userID string, boxIndex int) (*model.Purchase, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, orderID, paymentID string, boxIndex int) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
	ListClaimed(ctx context.Context) ([]*model.Purchase, error)
	ListClaimedByUser(ctx context.Context, userID string) ([]*model.Purchase, error)
}

const maxFailureReasonLen = 255

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type purchaseRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepoImpl{
		db: db,
	}
}

func (r *purchaseRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *purchaseRepoImpl) Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error {
	return r.conn(tx).WithContext(ctx).Create(purchase).Error
}

func (r *purchaseRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.conn(tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *purchaseRepoImpl) FindClaim(ctx context.Context, tx *gorm.DB, boxIndex int) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.conn(tx).WithContext(ctx).
		Where("claimed_box = ?", boxIndex).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

// FindLatest prefers the completed purchase for the box, then the most recent attempt.
func (r *purchaseRepoImpl) FindLatest(ctx context.Context, userID string, boxIndex int) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND box_index = ?", userID, boxIndex).
		Order("claimed_box IS NULL").
		Order("updated_at DESC").
		First(&purchase).Error
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

// MarkCompleted claims the box for an unclaimed purchase. It reports whether
// this call changed the row; false means the order is unknown or already claimed.
func (r *purchaseRepoImpl) MarkCompleted(ctx context.Context, tx *gorm.DB, orderID, paymentID string, boxIndex int) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Purchase{}).
		Where("order_id = ? AND claimed_box IS NULL", orderID).
		Updates(map[string]interface{}{
			"status":         model.PurchaseCompleted,
			"payment_id":     paymentID,
			"claimed_box":    boxIndex,
			"failure_reason": "",
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MarkFailed moves a pending purchase to failed. It reports whether a row changed.
func (r *purchaseRepoImpl) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	reason = truncate(reason, maxFailureReasonLen)
	result := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("order_id = ? AND status = ?", orderID, model.PurchasePending).
		Updates(map[string]interface{}{
			"status":         model.PurchaseFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *purchaseRepoImpl) ListClaimed(ctx context.Context) ([]*model.Purchase, error) {
	var purchases []*model.Purchase
	err := r.db.WithContext(ctx).
		Where("claimed_box IS NOT NULL").
		Order("box_index").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}

	return purchases, nil
}

func (r *purchaseRepoImpl) ListClaimedByUser(ctx context.Context, userID string) ([]*model.Purchase, error) {
	var purchases []*model.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND claimed_box IS NOT NULL", userID).
		Order("box_index").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}

	return purchases, nil
}
