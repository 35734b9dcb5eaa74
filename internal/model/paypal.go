package model

// PayPal v2 checkout order payloads, trimmed to the fields the lifecycle
// reads back.

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Final  bool   `json:"final_capture"`
	Amount Amount `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	ReferenceID string   `json:"reference_id"`
	Amount      Amount   `json:"amount"`
	Payments    Payments `json:"payments"`
}

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// PaypalOrder is the provider's order detail as returned by order create,
// get and capture calls.
type PaypalOrder struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"` // CREATED, APPROVED, COMPLETED, ...
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Links         []PaypalLink   `json:"links"`
}

// PaypalErrorDetail is one issue inside a provider error body.
type PaypalErrorDetail struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

// PaypalErrorBody is the provider's structured error payload.
type PaypalErrorBody struct {
	Name    string              `json:"name"`
	Message string              `json:"message"`
	Details []PaypalErrorDetail `json:"details"`
}

// Payment order actions.
const (
	ActionCreateListing = "create_listing"
	ActionExtend        = "extend"
)

// PaymentOrder is the in-flight correlation between a listing and a gateway
// transaction. It is passed to and returned from every lifecycle transition
// and discarded after capture resolves; it is never persisted.
type PaymentOrder struct {
	ListingID string
	OrderID   string
	Action    string
	Amount    string // decimal string, as sent to the gateway
}
