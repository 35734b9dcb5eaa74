package handler

import (
	"errors"
	"net/http"

	"marketplace-backend/internal/dto"
	"marketplace-backend/internal/model"
	"marketplace-backend/internal/service"

	"github.com/labstack/echo/v4"
)

type PaypalHandler struct {
	paymentService service.PaymentService
}

func NewPaypalHandler(paymentService service.PaymentService) *PaypalHandler {
	return &PaypalHandler{
		paymentService: paymentService,
	}
}

func (h *PaypalHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.ListingID == "" || req.Amount == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "listingId and amount are required"})
	}

	order := model.PaymentOrder{
		ListingID: req.ListingID,
		Action:    req.Action,
		Amount:    req.Amount,
	}
	if order.Action == "" {
		order.Action = model.ActionCreateListing
	}

	order, err := h.paymentService.CreateOrder(ctx, order, req.Plan)
	if err != nil {
		if errors.Is(err, service.ErrAmountMismatch) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, dto.CreateOrderResponse{OrderID: order.OrderID})
}

func (h *PaypalHandler) Capture(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CaptureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.OrderID == "" || req.ListingID == "" || req.Action == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "orderID, listingId and action are required"})
	}
	if req.Action != model.ActionCreateListing && req.Action != model.ActionExtend {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown action " + req.Action})
	}

	order := model.PaymentOrder{
		ListingID: req.ListingID,
		OrderID:   req.OrderID,
		Action:    req.Action,
	}

	outcome, err := h.paymentService.Capture(ctx, order, req.Plan)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, dto.CaptureResponse{OK: true, Status: outcome.Status})
}

func (h *PaypalHandler) VerifyOrder(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.Param("orderId")
	listingID := c.Param("listingId")
	if orderID == "" || listingID == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "orderId and listingId are required"})
	}

	status, completed, err := h.paymentService.Verify(ctx, orderID, listingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Status: status})
	}
	if !completed {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "order not completed", Status: status})
	}

	return c.JSON(http.StatusOK, dto.VerifyResponse{OK: true})
}
