package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adgrid/internal/model"
	"adgrid/internal/repository"

	"gorm.io/gorm"
)

const msgBoxTaken = "Box already purchased by another user"

type PurchaseStatus struct {
	UserID    string               `json:"userId"`
	BoxIndex  int                  `json:"boxIndex"`
	Status    model.PurchaseStatus `json:"status"`
	OrderID   string               `json:"orderId"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// PurchaseTracker is the source of truth for who owns which box.
type PurchaseTracker interface {
	GetPurchaseStatus(ctx context.Context, userID string, boxIndex int) (*PurchaseStatus, error)
	// EnsureAvailable fails with ErrConflict when the box is already owned.
	EnsureAvailable(ctx context.Context, userID string, boxIndex int) error
	MarkPending(ctx context.Context, userID string, boxIndex int, orderID string) error
	// MarkCompleted reports whether this call performed the transition; a
	// repeated call for the same purchase returns false and no error.
	MarkCompleted(ctx context.Context, userID string, boxIndex int, orderID, paymentID string) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string) (*model.Purchase, error)
	FindOrder(ctx context.Context, orderID string) (*model.Purchase, error)
	PurchasedBoxes(ctx context.Context, userID string) ([]int, error)
	Owners(ctx context.Context) (map[int]string, error)
}

type purchaseTrackerImpl struct {
	db           *gorm.DB
	purchaseRepo repository.PurchaseRepository
}

func NewPurchaseTracker(db *gorm.DB, purchaseRepo repository.PurchaseRepository) PurchaseTracker {
	return &purchaseTrackerImpl{
		db:           db,
		purchaseRepo: purchaseRepo,
	}
}

func (s *purchaseTrackerImpl) GetPurchaseStatus(ctx context.Context, userID string, boxIndex int) (*PurchaseStatus, error) {
	p, err := s.purchaseRepo.FindLatest(ctx, userID, boxIndex)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(ErrStorage, "failed to load purchase", err)
	}

	return &PurchaseStatus{
		UserID:    p.UserID,
		BoxIndex:  p.BoxIndex,
		Status:    p.Status,
		OrderID:   p.OrderID,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (s *purchaseTrackerImpl) EnsureAvailable(ctx context.Context, userID string, boxIndex int) error {
	claim, err := s.purchaseRepo.FindClaim(ctx, nil, boxIndex)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return newError(ErrStorage, "failed to load purchase", err)
	}

	if claim.UserID == userID {
		return newError(ErrConflict, "Box already purchased", nil)
	}
	return newError(ErrConflict, msgBoxTaken, nil)
}

func (s *purchaseTrackerImpl) MarkPending(ctx context.Context, userID string, boxIndex int, orderID string) error {
	err := s.purchaseRepo.Create(ctx, nil, &model.Purchase{
		OrderID:  orderID,
		UserID:   userID,
		BoxIndex: boxIndex,
		Status:   model.PurchasePending,
	})
	if err != nil {
		return newError(ErrStorage, "failed to record purchase", err)
	}
	return nil
}

func (s *purchaseTrackerImpl) MarkCompleted(ctx context.Context, userID string, boxIndex int, orderID, paymentID string) (bool, error) {
	transitioned := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.purchaseRepo.FindClaim(ctx, tx, boxIndex)
		switch {
		case err == nil:
			if claim.UserID != userID {
				return newError(ErrConflict, msgBoxTaken, nil)
			}
			if claim.OrderID != orderID {
				return newError(ErrConflict, "Box already purchased with another order", nil)
			}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		existing, err := s.purchaseRepo.FindByOrderID(ctx, tx, orderID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// order created without a box reservation; bind it now
			err = s.purchaseRepo.Create(ctx, tx, &model.Purchase{
				OrderID:  orderID,
				UserID:   userID,
				BoxIndex: boxIndex,
				Status:   model.PurchasePending,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		case existing.UserID != userID || existing.BoxIndex != boxIndex:
			return newError(ErrValidation, "Order does not belong to this box", nil)
		}

		updated, err := s.purchaseRepo.MarkCompleted(ctx, tx, orderID, paymentID, boxIndex)
		if err != nil {
			return err
		}
		if !updated {
			// a concurrent retry of this order claimed the box first
			current, err := s.purchaseRepo.FindByOrderID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if current.Status != model.PurchaseCompleted {
				return fmt.Errorf("complete purchase %s: row not updated", orderID)
			}
			return nil
		}
		transitioned = true
		return nil
	})
	if err == nil {
		return transitioned, nil
	}

	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return false, err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// lost the race for the box to a concurrent verification
		return false, newError(ErrConflict, msgBoxTaken, err)
	default:
		return false, newError(ErrStorage, "failed to complete purchase", err)
	}
}

func (s *purchaseTrackerImpl) MarkFailed(ctx context.Context, orderID, reason string) (*model.Purchase, error) {
	changed, err := s.purchaseRepo.MarkFailed(ctx, orderID, reason)
	if err != nil {
		return nil, newError(ErrStorage, "failed to update purchase", err)
	}
	if !changed {
		return nil, nil
	}

	p, err := s.purchaseRepo.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		slog.WarnContext(ctx, "reload failed purchase", "order_id", orderID, "error", err)
		return nil, nil
	}
	return p, nil
}

func (s *purchaseTrackerImpl) FindOrder(ctx context.Context, orderID string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.FindByOrderID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(ErrStorage, "failed to load purchase", err)
	}
	return p, nil
}

func (s *purchaseTrackerImpl) PurchasedBoxes(ctx context.Context, userID string) ([]int, error) {
	purchases, err := s.purchaseRepo.ListClaimedByUser(ctx, userID)
	if err != nil {
		return nil, newError(ErrStorage, "failed to load purchases", err)
	}

	boxes := make([]int, 0, len(purchases))
	for _, p := range purchases {
		boxes = append(boxes, p.BoxIndex)
	}
	return boxes, nil
}

func (s *purchaseTrackerImpl) Owners(ctx context.Context) (map[int]string, error) {
	purchases, err := s.purchaseRepo.ListClaimed(ctx)
	if err != nil {
		return nil, newError(ErrStorage, "failed to load purchases", err)
	}

	owners := make(map[int]string, len(purchases))
	for _, p := range purchases {
		owners[p.BoxIndex] = p.UserID
	}
	return owners, nil
}
