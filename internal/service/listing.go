package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-backend/internal/dto"
	"marketplace-backend/internal/model"
	"marketplace-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNotOwner rejects a mutation by a principal that does not own the listing.
var ErrNotOwner = errors.New("caller does not own the listing")

// ValidationError reports a rejected listing draft. No state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type ListingService interface {
	Create(ctx context.Context, ownerID string, req *dto.CreateListingRequest) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	Browse(ctx context.Context, filter repository.BrowseFilter) ([]*model.Listing, error)
	Update(ctx context.Context, ownerID, id string, req *dto.UpdateListingRequest) (*model.Listing, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type listingServiceImpl struct {
	log         *zap.Logger
	listingRepo repository.ListingRepository
	now         func() time.Time
}

func NewListingService(log *zap.Logger, listingRepo repository.ListingRepository) ListingService {
	return &listingServiceImpl{
		log:         log,
		listingRepo: listingRepo,
		now:         time.Now,
	}
}

func (s *listingServiceImpl) Create(ctx context.Context, ownerID string, req *dto.CreateListingRequest) (*model.Listing, error) {
	if err := validateDraft(req); err != nil {
		return nil, err
	}

	price, ok := model.PlanPrice(req.Plan)
	if !ok {
		return nil, &ValidationError{Field: "plan", Reason: "unknown plan tier"}
	}

	now := s.now()
	listing := &model.Listing{
		ID:          uuid.NewString(),
		Status:      model.StatusPendingPayment,
		Plan:        req.Plan,
		Price:       price,
		PricePaid:   decimal.Zero,
		CreatedAt:   now.UnixMilli(),
		ExpiresAt:   model.InitialExpiry(now, req.Plan),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Contact:     req.Contact,
		Tags:        req.Tags,
		PriceRange:  req.PriceRange,
		ImageURL:    req.ImageURL,
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("store listing: %w", err)
	}

	s.log.Info("listing created",
		zap.String("listing_id", listing.ID),
		zap.String("owner_id", ownerID),
		zap.String("plan", listing.Plan))

	return listing, nil
}

func (s *listingServiceImpl) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.listingRepo.GetByID(ctx, id)
}

func (s *listingServiceImpl) Browse(ctx context.Context, filter repository.BrowseFilter) ([]*model.Listing, error) {
	return s.listingRepo.ListVerified(ctx, s.now(), filter)
}

func (s *listingServiceImpl) Update(ctx context.Context, ownerID, id string, req *dto.UpdateListingRequest) (*model.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	// Display payload only; lifecycle fields are never client-writable.
	fields := map[string]interface{}{}
	setIf(fields, "name", req.Name)
	setIf(fields, "description", req.Description)
	setIf(fields, "category", req.Category)
	setIf(fields, "location", req.Location)
	setIf(fields, "contact", req.Contact)
	setIf(fields, "tags", req.Tags)
	setIf(fields, "price_range", req.PriceRange)
	setIf(fields, "image_url", req.ImageURL)
	if len(fields) == 0 {
		return listing, nil
	}

	if req.Contact != nil && !plausiblePhone(*req.Contact) {
		return nil, &ValidationError{Field: "contact", Reason: "not a plausible phone number"}
	}

	if err := s.listingRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	return s.listingRepo.GetByID(ctx, id)
}

func (s *listingServiceImpl) Delete(ctx context.Context, ownerID, id string) error {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if listing.OwnerID != ownerID {
		return ErrNotOwner
	}

	return s.listingRepo.Delete(ctx, id)
}

func setIf(fields map[string]interface{}, column string, value *string) {
	if value != nil {
		fields[column] = *value
	}
}

func validateDraft(req *dto.CreateListingRequest) error {
	required := []struct {
		field string
		value string
	}{
		{"name", req.Name},
		{"category", req.Category},
		{"location", req.Location},
		{"description", req.Description},
		{"contact", req.Contact},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "required"}
		}
	}

	if !plausiblePhone(req.Contact) {
		return &ValidationError{Field: "contact", Reason: "not a plausible phone number"}
	}

	return nil
}

// plausiblePhone reports whether the contact value normalizes to a phone
// number: 7 to 15 digits after stripping formatting, optional leading +.
func plausiblePhone(contact string) bool {
	s := strings.TrimSpace(contact)
	s = strings.TrimPrefix(s, "+")

	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting, ignore
		default:
			return false
		}
	}

	return digits >= 7 && digits <= 15
}
