package dto

type CreateOrderRequest struct {
	ListingID string `json:"listingId"`
	Amount    string `json:"amount"`
	// Action defaults to create_listing when omitted.
	Action string `json:"action"`
	Plan   string `json:"plan,omitempty"`
}

type CreateOrderResponse struct {
	OrderID string `json:"orderID"`
}

type CaptureRequest struct {
	OrderID   string `json:"orderID"`
	ListingID string `json:"listingId"`
	Action    string `json:"action"`
	Plan      string `json:"plan,omitempty"`
}

type CaptureResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type VerifyResponse struct {
	OK bool `json:"ok"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

type CreateListingRequest struct {
	Plan        string `json:"plan"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Contact     string `json:"contact"`
	Tags        string `json:"tags"`
	PriceRange  string `json:"priceRange"`
	ImageURL    string `json:"imageUrl"`
}

// UpdateListingRequest patches the display payload; nil fields are left
// untouched.
type UpdateListingRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Location    *string `json:"location"`
	Contact     *string `json:"contact"`
	Tags        *string `json:"tags"`
	PriceRange  *string `json:"priceRange"`
	ImageURL    *string `json:"imageUrl"`
}
