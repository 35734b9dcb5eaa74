package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-backend/internal/client"
	"marketplace-backend/internal/model"
	"marketplace-backend/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway order status meaning the payment is final.
const OrderCompleted = "COMPLETED"

// Capture outcome statuses reported to the caller on top of raw gateway
// statuses.
const (
	StatusAlreadyCompleted = "ALREADY_COMPLETED"
	StatusAlreadyCaptured  = "ALREADY_CAPTURED"
)

// ErrAmountMismatch rejects a client-asserted amount that disagrees with the
// plan price table.
var ErrAmountMismatch = errors.New("amount does not match plan price")

// ErrCaptureIncomplete reports a capture whose gateway status is anything but
// COMPLETED.
var ErrCaptureIncomplete = errors.New("capture not completed")

// CaptureOutcome is the result of a resolved capture transition.
type CaptureOutcome struct {
	Status string
	// Amount captured by the gateway; zero for ALREADY_CAPTURED, where the
	// previously recorded amount is kept.
	Amount decimal.Decimal
}

type PaymentService interface {
	// CreateOrder opens a gateway order for the payment and returns the order
	// with OrderID filled in. On gateway failure a pending listing is
	// compensated to expired.
	CreateOrder(ctx context.Context, order model.PaymentOrder, plan string) (model.PaymentOrder, error)
	// Capture finalizes the payment and applies the listing transition for the
	// order's action. Gateway "already completed" and "already captured"
	// responses resolve as success.
	Capture(ctx context.Context, order model.PaymentOrder, plan string) (*CaptureOutcome, error)
	// Verify re-queries the gateway by order id; a COMPLETED order forces the
	// listing to verified, anything else reports the status without mutation.
	Verify(ctx context.Context, orderID, listingID string) (string, bool, error)
}

type paymentServiceImpl struct {
	log          *zap.Logger
	paypalClient client.PaypalClient
	listingRepo  repository.ListingRepository
	sweeper      *Sweeper
	currency     string
	now          func() time.Time
}

func NewPaymentService(
	log *zap.Logger,
	paypalClient client.PaypalClient,
	listingRepo repository.ListingRepository,
	sweeper *Sweeper,
) PaymentService {
	return &paymentServiceImpl{
		log:          log,
		paypalClient: paypalClient,
		listingRepo:  listingRepo,
		sweeper:      sweeper,
		currency:     "USD",
		now:          time.Now,
	}
}

func (s *paymentServiceImpl) CreateOrder(ctx context.Context, order model.PaymentOrder, plan string) (model.PaymentOrder, error) {
	listing, err := s.listingRepo.GetByID(ctx, order.ListingID)
	if err != nil {
		return order, fmt.Errorf("read listing: %w", err)
	}

	amount, err := decimal.NewFromString(order.Amount)
	if err != nil {
		return order, fmt.Errorf("parse amount %q: %w", order.Amount, err)
	}

	expected, err := s.expectedAmount(listing, order.Action, plan)
	if err != nil {
		return order, err
	}
	if !amount.Equal(expected) {
		return order, fmt.Errorf("%w: got %s, plan charges %s",
			ErrAmountMismatch, amount.StringFixed(2), expected.StringFixed(2))
	}

	orderID, err := s.paypalClient.CreateOrder(ctx, order.ListingID, amount, s.currency)
	if err != nil {
		s.compensateExpire(order.ListingID)
		return order, fmt.Errorf("paypal api create order: %w", err)
	}

	if order.Action == model.ActionCreateListing {
		s.sweeper.Schedule(order.ListingID)
	}

	order.OrderID = orderID
	return order, nil
}

// expectedAmount recomputes the price the server will accept for this order
// instead of trusting the client-asserted amount: the listing's own plan for
// a create, the requested plan (falling back to the listing's) for an extend.
func (s *paymentServiceImpl) expectedAmount(listing *model.Listing, action, plan string) (decimal.Decimal, error) {
	code := listing.Plan
	if action == model.ActionExtend && model.ValidPlan(plan) {
		code = plan
	}
	price, ok := model.PlanPrice(code)
	if !ok {
		return decimal.Zero, fmt.Errorf("listing %s has unknown plan %q", listing.ID, code)
	}
	return price, nil
}

func (s *paymentServiceImpl) Capture(ctx context.Context, order model.PaymentOrder, plan string) (*CaptureOutcome, error) {
	outcome, err := s.capture(ctx, order, plan)
	if err != nil {
		s.compensateExpire(order.ListingID)
		return nil, err
	}
	s.sweeper.Cancel(order.ListingID)
	return outcome, nil
}

func (s *paymentServiceImpl) capture(ctx context.Context, order model.PaymentOrder, plan string) (*CaptureOutcome, error) {
	current, err := s.paypalClient.GetOrder(ctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("paypal api get order: %w", err)
	}

	// Redirect-based flows can complete out-of-band before we ever capture.
	if current.Status == OrderCompleted {
		amount := ExtractCapturedAmount(current)
		if err := s.applySuccess(ctx, order, plan, amount, StatusAlreadyCompleted); err != nil {
			return nil, err
		}
		return &CaptureOutcome{Status: StatusAlreadyCompleted, Amount: amount}, nil
	}

	captured, err := s.paypalClient.CaptureOrder(ctx, order.OrderID)
	if err != nil {
		var capErr *client.CaptureError
		if errors.As(err, &capErr) && capErr.HasIssue(client.IssueOrderAlreadyCaptured) {
			// A retry raced a prior successful capture. Keep the recorded
			// pricePaid, just make sure the listing is not left pending.
			if err := s.applySuccess(ctx, order, plan, decimal.Zero, StatusAlreadyCaptured); err != nil {
				return nil, err
			}
			return &CaptureOutcome{Status: StatusAlreadyCaptured}, nil
		}
		return nil, fmt.Errorf("paypal api capture order: %w", err)
	}

	if captured.Status != OrderCompleted {
		return nil, fmt.Errorf("%w: gateway status %s", ErrCaptureIncomplete, captured.Status)
	}

	amount := ExtractCapturedAmount(captured)
	if err := s.applySuccess(ctx, order, plan, amount, captured.Status); err != nil {
		return nil, err
	}
	return &CaptureOutcome{Status: captured.Status, Amount: amount}, nil
}

// applySuccess applies the listing transition for a finalized payment.
// status distinguishes the capture call that completed the order (COMPLETED)
// from calls landing on an order some earlier capture already finalized.
func (s *paymentServiceImpl) applySuccess(ctx context.Context, order model.PaymentOrder, plan string, amount decimal.Decimal, status string) error {
	if order.Action == model.ActionExtend {
		// Only the capture that completed the order grants the extension.
		// A retry or redirect double-submit landing on a finalized order
		// must not add another plan duration.
		if status != OrderCompleted {
			return s.ensureNotPending(ctx, order.ListingID)
		}
		return s.applyExtend(ctx, order.ListingID, plan, amount)
	}
	// ALREADY_CAPTURED keeps the amount the earlier capture recorded.
	return s.applyCreate(ctx, order.ListingID, amount, status != StatusAlreadyCaptured)
}

func (s *paymentServiceImpl) applyCreate(ctx context.Context, listingID string, amount decimal.Decimal, overwritePaid bool) error {
	applied, err := s.listingRepo.UpdateStatusIf(ctx, listingID,
		[]string{model.StatusPendingPayment, model.StatusVerified}, model.StatusVerified)
	if err != nil {
		return fmt.Errorf("mark listing verified: %w", err)
	}
	if !applied {
		// Expired listings are terminal; a payment landing after the sweep
		// has nothing left to update.
		s.log.Warn("capture succeeded but listing no longer eligible",
			zap.String("listing_id", listingID))
		return nil
	}

	if !overwritePaid {
		return nil
	}
	if err := s.listingRepo.UpdateFields(ctx, listingID, map[string]interface{}{
		"price_paid": amount,
	}); err != nil {
		return fmt.Errorf("record captured amount: %w", err)
	}
	return nil
}

func (s *paymentServiceImpl) applyExtend(ctx context.Context, listingID, plan string, amount decimal.Decimal) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("read listing: %w", err)
	}

	// Plan fallback order: the plan selected in the extension flow, the
	// listing's original plan, one month.
	code := plan
	if !model.ValidPlan(code) {
		code = listing.Plan
	}
	if !model.ValidPlan(code) {
		code = "1"
	}

	if price, ok := model.PlanPrice(code); ok && !amount.IsZero() && !amount.Equal(price) {
		s.log.Warn("extension capture amount does not match plan price",
			zap.String("listing_id", listingID),
			zap.String("plan", code),
			zap.String("captured", amount.StringFixed(2)),
			zap.String("plan_price", price.StringFixed(2)))
	}

	expiresAt := model.ExtendExpiry(s.now(), listing.ExpiresAt, code)
	if err := s.listingRepo.UpdateFields(ctx, listingID, map[string]interface{}{
		"expires_at": expiresAt,
		"plan":       code,
	}); err != nil {
		return fmt.Errorf("record extension: %w", err)
	}

	// An extension must not leave the listing pending.
	return s.ensureNotPending(ctx, listingID)
}

func (s *paymentServiceImpl) ensureNotPending(ctx context.Context, listingID string) error {
	if _, err := s.listingRepo.UpdateStatusIf(ctx, listingID,
		[]string{model.StatusPendingPayment}, model.StatusVerified); err != nil {
		return fmt.Errorf("unpend extended listing: %w", err)
	}
	return nil
}

func (s *paymentServiceImpl) Verify(ctx context.Context, orderID, listingID string) (string, bool, error) {
	order, err := s.paypalClient.GetOrder(ctx, orderID)
	if err != nil {
		return "", false, fmt.Errorf("paypal api get order: %w", err)
	}

	if order.Status != OrderCompleted {
		return order.Status, false, nil
	}

	if _, err := s.listingRepo.UpdateStatusIf(ctx, listingID,
		[]string{model.StatusPendingPayment, model.StatusVerified}, model.StatusVerified); err != nil {
		return order.Status, true, fmt.Errorf("mark listing verified: %w", err)
	}
	s.sweeper.Cancel(listingID)

	return order.Status, true, nil
}

// compensateExpire is the best-effort cleanup after a gateway failure: a
// listing still pending payment flips to expired; a verified listing (extend
// flow) is left alone. Store failures here are logged, never retried, and do
// not change the response already owed to the caller.
func (s *paymentServiceImpl) compensateExpire(listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	applied, err := s.listingRepo.UpdateStatusIf(ctx, listingID,
		[]string{model.StatusPendingPayment}, model.StatusExpired)
	if err != nil {
		s.log.Error("compensating expire failed",
			zap.String("listing_id", listingID), zap.Error(err))
		return
	}
	if applied {
		s.sweeper.Cancel(listingID)
	}
}
