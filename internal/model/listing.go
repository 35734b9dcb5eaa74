package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing lifecycle statuses. No other value is ever written.
const (
	StatusPendingPayment = "pending_payment"
	StatusVerified       = "verified"
	StatusExpired        = "expired"
)

// PlanMonth is the billing month used for expiry math: 30 days flat.
const PlanMonth = 30 * 24 * time.Hour

type Listing struct {
	ID     string `gorm:"primaryKey;size:64;not null" json:"id"`
	Status string `gorm:"size:32;index;not null" json:"status"` // pending_payment, verified, expired
	Plan   string `gorm:"size:8;not null" json:"plan"`          // months: "1", "3", "6", "12"

	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	PricePaid decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"pricePaid"`

	// Epoch milliseconds. ExpiresAt == 0 means no expiry recorded.
	CreatedAt int64 `gorm:"not null" json:"createdAt"`
	ExpiresAt int64 `gorm:"index" json:"expiresAt"`

	OwnerID string `gorm:"size:64;index;not null" json:"ownerId"`

	// Display payload, opaque to the lifecycle.
	Name        string `gorm:"size:128;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"size:64;index" json:"category"`
	Location    string `gorm:"size:128;index" json:"location"`
	Contact     string `gorm:"size:64" json:"contact"`
	Tags        string `gorm:"size:256" json:"tags"`
	PriceRange  string `gorm:"size:64" json:"priceRange"`
	ImageURL    string `gorm:"type:text" json:"imageUrl"`

	UpdatedAt time.Time `json:"-"`
}

// planMonths maps the plan code to its duration in 30-day months.
var planMonths = map[string]int64{
	"1":  1,
	"3":  3,
	"6":  6,
	"12": 12,
}

// planPrices is the USD amount charged per plan. Client-asserted amounts are
// verified against this table before an order is created.
var planPrices = map[string]decimal.Decimal{
	"1":  decimal.RequireFromString("10.00"),
	"3":  decimal.RequireFromString("27.00"),
	"6":  decimal.RequireFromString("48.00"),
	"12": decimal.RequireFromString("84.00"),
}

// ValidPlan reports whether code is one of the enumerated plan tiers.
func ValidPlan(code string) bool {
	_, ok := planMonths[code]
	return ok
}

// PlanPrice returns the amount charged for a plan tier.
func PlanPrice(code string) (decimal.Decimal, bool) {
	p, ok := planPrices[code]
	return p, ok
}

// PlanDuration returns the expiry extension a plan buys.
func PlanDuration(code string) time.Duration {
	months, ok := planMonths[code]
	if !ok {
		months = 1
	}
	return time.Duration(months) * PlanMonth
}

// InitialExpiry computes expiresAt for a freshly created listing.
func InitialExpiry(createdAt time.Time, plan string) int64 {
	return createdAt.Add(PlanDuration(plan)).UnixMilli()
}

// ExtendExpiry recomputes expiresAt after a paid extension: the plan duration
// is added on top of the current expiry, or on top of now when the listing has
// already lapsed.
func ExtendExpiry(now time.Time, currentExpiry int64, plan string) int64 {
	base := now.UnixMilli()
	if currentExpiry > base {
		base = currentExpiry
	}
	return base + PlanDuration(plan).Milliseconds()
}
