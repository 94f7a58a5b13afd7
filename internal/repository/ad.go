package repository

import (
	"context"
	"strings"
	"time"

	"adgrid/internal/model"

	"gorm.io/gorm"
)

type AdRepository interface {
	Create(ctx context.Context, ad *model.Ad) error
	Update(ctx context.Context, ad *model.Ad) error
	Delete(ctx context.Context, adID string) error
	FindByID(ctx context.Context, adID string) (*model.Ad, error)
	FindByBox(ctx context.Context, boxIndex int) (*model.Ad, error)
	ListByUser(ctx context.Context, userID, query string) ([]*model.Ad, error)
	ListAll(ctx context.Context) ([]*model.Ad, error)
}

type adRepoImpl struct {
	db *gorm.DB
}

func NewAdRepository(db *gorm.DB) AdRepository {
	return &adRepoImpl{
		db: db,
	}
}

func (r *adRepoImpl) Create(ctx context.Context, ad *model.Ad) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

func (r *adRepoImpl) Update(ctx context.Context, ad *model.Ad) error {
	ad.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(&model.Ad{}).
		Where("id = ?", ad.ID).
		Updates(map[string]interface{}{
			"heading":     ad.Heading,
			"description": ad.Description,
			"image_url":   ad.ImageURL,
			"updated_at":  ad.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *adRepoImpl) Delete(ctx context.Context, adID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", adID).
		Delete(&model.Ad{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *adRepoImpl) FindByID(ctx context.Context, adID string) (*model.Ad, error) {
	var ad model.Ad
	err := r.db.WithContext(ctx).
		Where("id = ?", adID).
		First(&ad).Error
	if err != nil {
		return nil, err
	}

	return &ad, nil
}

func (r *adRepoImpl) FindByBox(ctx context.Context, boxIndex int) (*model.Ad, error) {
	var ad model.Ad
	err := r.db.WithContext(ctx).
		Where("box_index = ?", boxIndex).
		First(&ad).Error
	if err != nil {
		return nil, err
	}

	return &ad, nil
}

// ListByUser returns the user's ads newest first, optionally filtered on heading or description.
func (r *adRepoImpl) ListByUser(ctx context.Context, userID, query string) ([]*model.Ad, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(heading) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var ads []*model.Ad
	if err := q.Order("created_at DESC").Find(&ads).Error; err != nil {
		return nil, err
	}

	return ads, nil
}

func (r *adRepoImpl) ListAll(ctx context.Context) ([]*model.Ad, error) {
	var ads []*model.Ad
	err := r.db.WithContext(ctx).
		Order("box_index").
		Find(&ads).Error
	if err != nil {
		return nil, err
	}

	return ads, nil
}
