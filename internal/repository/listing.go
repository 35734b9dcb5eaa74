package repository

import (
	"context"
	"time"

	"marketplace-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BrowseFilter narrows the public browse set. Zero values match everything.
type BrowseFilter struct {
	Category string
	Location string
	Query    string
}

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// UpdateStatusIf transitions status only when the current value is one of
	// from, and reports whether the transition applied. This is the
	// compare-and-swap guard for racing lifecycle transitions.
	UpdateStatusIf(ctx context.Context, id string, from []string, to string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListVerified(ctx context.Context, now time.Time, filter BrowseFilter) ([]*model.Listing, error)
	// Subscribe registers a change listener; the returned cancel func must be
	// called when the listener goes away.
	Subscribe() (<-chan ListingEvent, func())
}

type listingRepoImpl struct {
	db  *gorm.DB
	hub *listingHub
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepoImpl{
		db:  db,
		hub: newListingHub(),
	}
}

func (r *listingRepoImpl) Create(ctx context.Context, listing *model.Listing) error {
	// Create-or-overwrite by id.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(listing).Error
	if err != nil {
		return err
	}
	r.hub.publish(ListingEvent{Kind: EventCreated, ListingID: listing.ID})
	return nil
}

func (r *listingRepoImpl) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&listing).Error

	if err != nil {
		return nil, err
	}

	return &listing, nil
}

func (r *listingRepoImpl) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("id = ?", id).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.hub.publish(ListingEvent{Kind: EventUpdated, ListingID: id})
	return nil
}

func (r *listingRepoImpl) UpdateStatusIf(ctx context.Context, id string, from []string, to string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	r.hub.publish(ListingEvent{Kind: EventUpdated, ListingID: id})
	return true, nil
}

func (r *listingRepoImpl) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Listing{}).Error

	if err != nil {
		return err
	}

	r.hub.publish(ListingEvent{Kind: EventDeleted, ListingID: id})
	return nil
}

func (r *listingRepoImpl) ListVerified(ctx context.Context, now time.Time, filter BrowseFilter) ([]*model.Listing, error) {
	q := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("status = ?", model.StatusVerified).
		Where("expires_at = 0 OR expires_at > ?", now.UnixMilli())

	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("name LIKE ? OR description LIKE ? OR tags LIKE ?", like, like, like)
	}

	var listings []*model.Listing
	err := q.Order("created_at DESC").Find(&listings).Error
	if err != nil {
		return nil, err
	}

	return listings, nil
}

func (r *listingRepoImpl) Subscribe() (<-chan ListingEvent, func()) {
	return r.hub.subscribe()
}
