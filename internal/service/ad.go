package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"adgrid/internal/events"
	"adgrid/internal/metrics"
	"adgrid/internal/model"
	"adgrid/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxHeadingLen     = 120
	maxDescriptionLen = 1000
)

type SubmitAdInput struct {
	ID          string
	BoxIndex    *int
	Heading     string
	Description string
	ImageURL    string
}

type Box struct {
	Index     int       `json:"index"`
	Purchased bool      `json:"purchased"`
	Ad        *model.Ad `json:"ad,omitempty"`
}

type AdService interface {
	Submit(ctx context.Context, userID string, in SubmitAdInput) (*model.Ad, error)
	Delete(ctx context.Context, userID, adID string) error
	List(ctx context.Context, userID, query string) ([]*model.Ad, error)
	Grid(ctx context.Context) ([]Box, error)
}

type adServiceImpl struct {
	adRepo          repository.AdRepository
	purchaseTracker PurchaseTracker
	publisher       events.Publisher
}

func NewAdService(
	adRepo repository.AdRepository,
	purchaseTracker PurchaseTracker,
	publisher events.Publisher,
) AdService {
	return &adServiceImpl{
		adRepo:          adRepo,
		purchaseTracker: purchaseTracker,
		publisher:       publisher,
	}
}

func validateAd(in *SubmitAdInput) error {
	if in.BoxIndex == nil || !model.ValidBoxIndex(*in.BoxIndex) {
		return newError(ErrValidation, "Invalid box index", nil)
	}
	in.Heading = strings.TrimSpace(in.Heading)
	in.Description = strings.TrimSpace(in.Description)
	if in.Heading == "" {
		return newError(ErrValidation, "Heading is required", nil)
	}
	if utf8.RuneCountInString(in.Heading) > maxHeadingLen {
		return newError(ErrValidation, "Heading is too long", nil)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return newError(ErrValidation, "Description is too long", nil)
	}
	return nil
}

// Submit creates or updates the ad of a box. Box ownership is checked on every call.
func (s *adServiceImpl) Submit(ctx context.Context, userID string, in SubmitAdInput) (*model.Ad, error) {
	if err := validateAd(&in); err != nil {
		metrics.AdWritesTotal.WithLabelValues("submit", "invalid").Inc()
		return nil, err
	}
	boxIndex := *in.BoxIndex

	status, err := s.purchaseTracker.GetPurchaseStatus(ctx, userID, boxIndex)
	if err != nil {
		return nil, err
	}
	if status == nil || status.Status != model.PurchaseCompleted {
		metrics.AdWritesTotal.WithLabelValues("submit", "unauthorized").Inc()
		slog.WarnContext(ctx, "ad submit without purchase", "user_id", userID, "box_index", boxIndex)
		return nil, newError(ErrUnauthorized, "Box has not been purchased", nil)
	}

	existing, err := s.adRepo.FindByBox(ctx, boxIndex)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if in.ID != "" {
			return nil, newError(ErrNotFound, "Ad not found", nil)
		}
		return s.create(ctx, userID, boxIndex, &in)
	case err != nil:
		return nil, newError(ErrStorage, "failed to load ad", err)
	}

	if existing.UserID != userID {
		return nil, newError(ErrUnauthorized, "Ad belongs to another user", nil)
	}
	if in.ID != "" && in.ID != existing.ID {
		return nil, newError(ErrValidation, "Ad does not belong to this box", nil)
	}
	return s.update(ctx, existing, &in)
}

func (s *adServiceImpl) create(ctx context.Context, userID string, boxIndex int, in *SubmitAdInput) (*model.Ad, error) {
	ad := &model.Ad{
		ID:          uuid.NewString(),
		UserID:      userID,
		BoxIndex:    boxIndex,
		Heading:     in.Heading,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	}
	if err := s.adRepo.Create(ctx, ad); err != nil {
		metrics.AdWritesTotal.WithLabelValues("create", "error").Inc()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(ErrConflict, "Box already has an ad", err)
		}
		return nil, newError(ErrStorage, "failed to save ad", err)
	}

	metrics.AdWritesTotal.WithLabelValues("create", "ok").Inc()
	s.publish(ctx, events.New(events.TypeAdCreated, "ad", ad.ID, ad.BoxIndex, ad.UserID, ad))
	return ad, nil
}

func (s *adServiceImpl) update(ctx context.Context, ad *model.Ad, in *SubmitAdInput) (*model.Ad, error) {
	ad.Heading = in.Heading
	ad.Description = in.Description
	if in.ImageURL != "" {
		ad.ImageURL = in.ImageURL
	}

	if err := s.adRepo.Update(ctx, ad); err != nil {
		metrics.AdWritesTotal.WithLabelValues("update", "error").Inc()
		return nil, newError(ErrStorage, "failed to save ad", err)
	}

	metrics.AdWritesTotal.WithLabelValues("update", "ok").Inc()
	s.publish(ctx, events.New(events.TypeAdUpdated, "ad", ad.ID, ad.BoxIndex, ad.UserID, ad))
	return ad, nil
}

func (s *adServiceImpl) Delete(ctx context.Context, userID, adID string) error {
	ad, err := s.adRepo.FindByID(ctx, adID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(ErrNotFound, "Ad not found", nil)
	}
	if err != nil {
		return newError(ErrStorage, "failed to load ad", err)
	}
	if ad.UserID != userID {
		return newError(ErrUnauthorized, "Ad belongs to another user", nil)
	}

	if err := s.adRepo.Delete(ctx, adID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AdWritesTotal.WithLabelValues("delete", "error").Inc()
		return newError(ErrStorage, "failed to delete ad", err)
	}

	metrics.AdWritesTotal.WithLabelValues("delete", "ok").Inc()
	s.publish(ctx, events.New(events.TypeAdDeleted, "ad", ad.ID, ad.BoxIndex, ad.UserID, nil))
	return nil
}

func (s *adServiceImpl) List(ctx context.Context, userID, query string) ([]*model.Ad, error) {
	ads, err := s.adRepo.ListByUser(ctx, userID, query)
	if err != nil {
		return nil, newError(ErrStorage, "failed to load ads", err)
	}
	return ads, nil
}

func (s *adServiceImpl) Grid(ctx context.Context) ([]Box, error) {
	owners, err := s.purchaseTracker.Owners(ctx)
	if err != nil {
		return nil, err
	}
	ads, err := s.adRepo.ListAll(ctx)
	if err != nil {
		return nil, newError(ErrStorage, "failed to load ads", err)
	}

	grid := make([]Box, model.BoxCount)
	for i := range grid {
		_, purchased := owners[i]
		grid[i] = Box{Index: i, Purchased: purchased}
	}
	for _, ad := range ads {
		if model.ValidBoxIndex(ad.BoxIndex) && owners[ad.BoxIndex] == ad.UserID {
			grid[ad.BoxIndex].Ad = ad
		}
	}
	return grid, nil
}

func (s *adServiceImpl) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish event", "type", event.Type, "error", err)
	}
}
