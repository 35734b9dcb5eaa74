package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-backend/internal/client"
	"marketplace-backend/internal/model"
	"marketplace-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Mocks for Dependencies ---

type MockPaypalClient struct{ mock.Mock }

func (m *MockPaypalClient) CreateOrder(ctx context.Context, listingID string, amount decimal.Decimal, currency string) (string, error) {
	args := m.Called(ctx, listingID, amount, currency)
	return args.String(0), args.Error(1)
}

func (m *MockPaypalClient) GetOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaypalOrder), args.Error(1)
}

func (m *MockPaypalClient) CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaypalOrder), args.Error(1)
}

type MockListingRepo struct{ mock.Mock }

func (m *MockListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepo) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockListingRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockListingRepo) UpdateStatusIf(ctx context.Context, id string, from []string, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockListingRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockListingRepo) ListVerified(ctx context.Context, now time.Time, filter repository.BrowseFilter) ([]*model.Listing, error) {
	args := m.Called(ctx, now, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Listing), args.Error(1)
}

func (m *MockListingRepo) Subscribe() (<-chan repository.ListingEvent, func()) {
	ch := make(chan repository.ListingEvent)
	return ch, func() { close(ch) }
}

// --- Helpers ---

func newTestPaymentService(repo repository.ListingRepository, paypal client.PaypalClient, now time.Time) (*paymentServiceImpl, *Sweeper) {
	sweeper := NewSweeper(zap.NewNop(), repo, time.Minute)
	svc := NewPaymentService(zap.NewNop(), paypal, repo, sweeper).(*paymentServiceImpl)
	svc.now = func() time.Time { return now }
	return svc, sweeper
}

func completedOrder(orderID, listingID, amount string) *model.PaypalOrder {
	return &model.PaypalOrder{
		ID:     orderID,
		Status: OrderCompleted,
		PurchaseUnits: []model.PurchaseUnit{{
			ReferenceID: listingID,
			Amount:      model.Amount{Currency: "USD", Value: amount},
			Payments: model.Payments{Captures: []model.Capture{{
				ID:     "CAP-" + orderID,
				Status: OrderCompleted,
				Amount: model.Amount{Currency: "USD", Value: amount},
			}}},
		}},
	}
}

func pendingExit() []string {
	return []string{model.StatusPendingPayment}
}

func verifiedEntry() []string {
	return []string{model.StatusPendingPayment, model.StatusVerified}
}

func priceSet(amount string) interface{} {
	return mock.MatchedBy(func(fields map[string]interface{}) bool {
		paid, ok := fields["price_paid"].(decimal.Decimal)
		return ok && paid.Equal(dec(amount))
	})
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	listing := &model.Listing{ID: "L1", Status: model.StatusPendingPayment, Plan: "1", Price: dec("10.00")}

	t.Run("success schedules a sweep", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		repo.On("GetByID", ctx, "L1").Return(listing, nil).Once()
		paypal.On("CreateOrder", ctx, "L1", mock.MatchedBy(func(a decimal.Decimal) bool {
			return a.Equal(dec("10"))
		}), "USD").Return("ORD1", nil).Once()

		order, err := svc.CreateOrder(ctx, model.PaymentOrder{
			ListingID: "L1", Action: model.ActionCreateListing, Amount: "10",
		}, "")

		require.NoError(t, err)
		assert.Equal(t, "ORD1", order.OrderID)

		sweeper.mu.Lock()
		assert.Contains(t, sweeper.timers, "L1")
		sweeper.mu.Unlock()

		paypal.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("gateway failure expires the listing", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		repo.On("GetByID", ctx, "L2").Return(&model.Listing{
			ID: "L2", Status: model.StatusPendingPayment, Plan: "1", Price: dec("10.00"),
		}, nil).Once()
		paypal.On("CreateOrder", mock.Anything, "L2", mock.Anything, "USD").
			Return("", errors.New("paypal create order returned no order id")).Once()
		repo.On("UpdateStatusIf", mock.Anything, "L2", pendingExit(), model.StatusExpired).
			Return(true, nil).Once()

		_, err := svc.CreateOrder(ctx, model.PaymentOrder{
			ListingID: "L2", Action: model.ActionCreateListing, Amount: "10.00",
		}, "")

		require.Error(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("amount mismatch is rejected before the gateway", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		repo.On("GetByID", ctx, "L1").Return(listing, nil).Once()

		_, err := svc.CreateOrder(ctx, model.PaymentOrder{
			ListingID: "L1", Action: model.ActionCreateListing, Amount: "11.00",
		}, "")

		require.ErrorIs(t, err, ErrAmountMismatch)
		paypal.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("extend verifies the requested plan price", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		verified := &model.Listing{ID: "L3", Status: model.StatusVerified, Plan: "1", Price: dec("10.00")}
		repo.On("GetByID", ctx, "L3").Return(verified, nil).Once()
		paypal.On("CreateOrder", ctx, "L3", mock.MatchedBy(func(a decimal.Decimal) bool {
			return a.Equal(dec("27"))
		}), "USD").Return("ORD3", nil).Once()

		order, err := svc.CreateOrder(ctx, model.PaymentOrder{
			ListingID: "L3", Action: model.ActionExtend, Amount: "27.00",
		}, "3")

		require.NoError(t, err)
		assert.Equal(t, "ORD3", order.OrderID)

		// No sweep for extensions; the listing is already live.
		sweeper.mu.Lock()
		assert.NotContains(t, sweeper.timers, "L3")
		sweeper.mu.Unlock()
	})
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	createOrder := model.PaymentOrder{
		ListingID: "L1", OrderID: "ORD1", Action: model.ActionCreateListing, Amount: "10",
	}

	t.Run("success verifies the listing and records the amount", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").
			Return(&model.PaypalOrder{ID: "ORD1", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD1").
			Return(completedOrder("ORD1", "L1", "10.00"), nil).Once()
		repo.On("UpdateStatusIf", ctx, "L1", verifiedEntry(), model.StatusVerified).
			Return(true, nil).Once()
		repo.On("UpdateFields", ctx, "L1", priceSet("10.00")).Return(nil).Once()

		outcome, err := svc.Capture(ctx, createOrder, "")

		require.NoError(t, err)
		assert.Equal(t, OrderCompleted, outcome.Status)
		assert.True(t, outcome.Amount.Equal(dec("10")))
		paypal.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("already completed skips the capture call", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").
			Return(completedOrder("ORD1", "L1", "10.00"), nil).Twice()
		repo.On("UpdateStatusIf", ctx, "L1", verifiedEntry(), model.StatusVerified).
			Return(true, nil).Twice()
		repo.On("UpdateFields", ctx, "L1", priceSet("10.00")).Return(nil).Twice()

		// Idempotent: capturing twice yields the same end state.
		for i := 0; i < 2; i++ {
			outcome, err := svc.Capture(ctx, createOrder, "")
			require.NoError(t, err)
			assert.Equal(t, StatusAlreadyCompleted, outcome.Status)
		}

		paypal.AssertNotCalled(t, "CaptureOrder", mock.Anything, mock.Anything)
	})

	t.Run("already captured is success without touching pricePaid", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		capErr := &client.CaptureError{
			StatusCode: 422,
			Body:       []byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`),
			Issues:     []string{client.IssueOrderAlreadyCaptured},
		}
		paypal.On("GetOrder", ctx, "ORD1").
			Return(&model.PaypalOrder{ID: "ORD1", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD1").Return(nil, capErr).Once()
		repo.On("UpdateStatusIf", ctx, "L1", verifiedEntry(), model.StatusVerified).
			Return(true, nil).Once()

		outcome, err := svc.Capture(ctx, createOrder, "")

		require.NoError(t, err)
		assert.Equal(t, StatusAlreadyCaptured, outcome.Status)
		repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-completed capture expires the listing", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").
			Return(&model.PaypalOrder{ID: "ORD1", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD1").
			Return(&model.PaypalOrder{ID: "ORD1", Status: "DECLINED"}, nil).Once()
		repo.On("UpdateStatusIf", mock.Anything, "L1", pendingExit(), model.StatusExpired).
			Return(true, nil).Once()

		_, err := svc.Capture(ctx, createOrder, "")

		require.ErrorIs(t, err, ErrCaptureIncomplete)
		repo.AssertExpectations(t)
	})

	t.Run("gateway exception expires the listing best-effort", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").Return(nil, errors.New("connection reset")).Once()
		// Even the compensating update failing only logs; the caller still
		// gets the original gateway error.
		repo.On("UpdateStatusIf", mock.Anything, "L1", pendingExit(), model.StatusExpired).
			Return(false, errors.New("store down")).Once()

		_, err := svc.Capture(ctx, createOrder, "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestCaptureExtend(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	day := 24 * time.Hour

	extendOrder := model.PaymentOrder{
		ListingID: "L3", OrderID: "ORD3", Action: model.ActionExtend, Amount: "27.00",
	}

	expiresSet := func(want int64, plan string) interface{} {
		return mock.MatchedBy(func(fields map[string]interface{}) bool {
			return fields["expires_at"] == want && fields["plan"] == plan
		})
	}

	setupCompleted := func(paypal *MockPaypalClient) {
		paypal.On("GetOrder", ctx, "ORD3").
			Return(&model.PaypalOrder{ID: "ORD3", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD3").
			Return(completedOrder("ORD3", "L3", "27.00"), nil).Once()
	}

	t.Run("future expiry extends from the current expiry", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		currentExpiry := now.Add(5 * day).UnixMilli()
		wantExpiry := currentExpiry + (90 * day).Milliseconds()

		setupCompleted(paypal)
		repo.On("GetByID", ctx, "L3").Return(&model.Listing{
			ID: "L3", Status: model.StatusVerified, Plan: "1", ExpiresAt: currentExpiry,
		}, nil).Once()
		repo.On("UpdateFields", ctx, "L3", expiresSet(wantExpiry, "3")).Return(nil).Once()
		repo.On("UpdateStatusIf", ctx, "L3", pendingExit(), model.StatusVerified).
			Return(false, nil).Once()

		outcome, err := svc.Capture(ctx, extendOrder, "3")

		require.NoError(t, err)
		assert.Equal(t, OrderCompleted, outcome.Status)
		repo.AssertExpectations(t)
	})

	t.Run("lapsed expiry extends from now", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		wantExpiry := now.UnixMilli() + (90 * day).Milliseconds()

		setupCompleted(paypal)
		repo.On("GetByID", ctx, "L3").Return(&model.Listing{
			ID: "L3", Status: model.StatusVerified, Plan: "1",
			ExpiresAt: now.Add(-10 * day).UnixMilli(),
		}, nil).Once()
		repo.On("UpdateFields", ctx, "L3", expiresSet(wantExpiry, "3")).Return(nil).Once()
		repo.On("UpdateStatusIf", ctx, "L3", pendingExit(), model.StatusVerified).
			Return(false, nil).Once()

		_, err := svc.Capture(ctx, extendOrder, "3")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("retry after a successful capture does not extend again", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		currentExpiry := now.Add(5 * day).UnixMilli()
		wantExpiry := currentExpiry + (90 * day).Milliseconds()

		// First capture completes the order and grants the extension.
		paypal.On("GetOrder", ctx, "ORD3").
			Return(&model.PaypalOrder{ID: "ORD3", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD3").
			Return(completedOrder("ORD3", "L3", "27.00"), nil).Once()
		repo.On("GetByID", ctx, "L3").Return(&model.Listing{
			ID: "L3", Status: model.StatusVerified, Plan: "1", ExpiresAt: currentExpiry,
		}, nil).Once()
		repo.On("UpdateFields", ctx, "L3", expiresSet(wantExpiry, "3")).Return(nil).Once()
		repo.On("UpdateStatusIf", ctx, "L3", pendingExit(), model.StatusVerified).
			Return(false, nil).Twice()

		// The retry finds the order already completed.
		paypal.On("GetOrder", ctx, "ORD3").
			Return(completedOrder("ORD3", "L3", "27.00"), nil).Once()

		first, err := svc.Capture(ctx, extendOrder, "3")
		require.NoError(t, err)
		assert.Equal(t, OrderCompleted, first.Status)

		second, err := svc.Capture(ctx, extendOrder, "3")
		require.NoError(t, err)
		assert.Equal(t, StatusAlreadyCompleted, second.Status)

		// Exactly one expiry write across both calls.
		repo.AssertNumberOfCalls(t, "UpdateFields", 1)
		repo.AssertExpectations(t)
	})

	t.Run("already captured retry leaves the expiry untouched", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		capErr := &client.CaptureError{
			StatusCode: 422,
			Body:       []byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`),
			Issues:     []string{client.IssueOrderAlreadyCaptured},
		}
		paypal.On("GetOrder", ctx, "ORD3").
			Return(&model.PaypalOrder{ID: "ORD3", Status: "APPROVED"}, nil).Once()
		paypal.On("CaptureOrder", ctx, "ORD3").Return(nil, capErr).Once()
		repo.On("UpdateStatusIf", ctx, "L3", pendingExit(), model.StatusVerified).
			Return(false, nil).Once()

		outcome, err := svc.Capture(ctx, extendOrder, "3")

		require.NoError(t, err)
		assert.Equal(t, StatusAlreadyCaptured, outcome.Status)
		repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown plan falls back to the listing plan", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		currentExpiry := now.Add(5 * day).UnixMilli()
		wantExpiry := currentExpiry + (180 * day).Milliseconds()

		setupCompleted(paypal)
		repo.On("GetByID", ctx, "L3").Return(&model.Listing{
			ID: "L3", Status: model.StatusVerified, Plan: "6", ExpiresAt: currentExpiry,
		}, nil).Once()
		repo.On("UpdateFields", ctx, "L3", expiresSet(wantExpiry, "6")).Return(nil).Once()
		repo.On("UpdateStatusIf", ctx, "L3", pendingExit(), model.StatusVerified).
			Return(false, nil).Once()

		_, err := svc.Capture(ctx, extendOrder, "")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("completed order verifies the listing", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").
			Return(completedOrder("ORD1", "L1", "10.00"), nil).Once()
		repo.On("UpdateStatusIf", ctx, "L1", verifiedEntry(), model.StatusVerified).
			Return(true, nil).Once()

		status, completed, err := svc.Verify(ctx, "ORD1", "L1")

		require.NoError(t, err)
		assert.True(t, completed)
		assert.Equal(t, OrderCompleted, status)
	})

	t.Run("incomplete order reports status without mutation", func(t *testing.T) {
		paypal := new(MockPaypalClient)
		repo := new(MockListingRepo)
		svc, sweeper := newTestPaymentService(repo, paypal, now)
		defer sweeper.Stop()

		paypal.On("GetOrder", ctx, "ORD1").
			Return(&model.PaypalOrder{ID: "ORD1", Status: "APPROVED"}, nil).Once()

		status, completed, err := svc.Verify(ctx, "ORD1", "L1")

		require.NoError(t, err)
		assert.False(t, completed)
		assert.Equal(t, "APPROVED", status)
		repo.AssertNotCalled(t, "UpdateStatusIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
