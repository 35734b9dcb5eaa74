package handler

import (
	"errors"
	"net/http"

	"marketplace-backend/internal/dto"
	"marketplace-backend/internal/middleware"
	"marketplace-backend/internal/repository"
	"marketplace-backend/internal/service"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ListingHandler struct {
	listingService service.ListingService
}

func NewListingHandler(listingService service.ListingService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
	}
}

// Browse is the public browse set: verified listings that have not lapsed.
func (h *ListingHandler) Browse(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.BrowseFilter{
		Category: c.QueryParam("category"),
		Location: c.QueryParam("location"),
		Query:    c.QueryParam("q"),
	}

	listings, err := h.listingService.Browse(ctx, filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, listings)
}

func (h *ListingHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	listing, err := h.listingService.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	listing, err := h.listingService.Create(ctx, middleware.OwnerID(c), &req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Error()})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusCreated, listing)
}

func (h *ListingHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	listing, err := h.listingService.Update(ctx, middleware.OwnerID(c), c.Param("id"), &req)
	if err != nil {
		return h.mutationError(c, err)
	}

	return c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.listingService.Delete(ctx, middleware.OwnerID(c), c.Param("id")); err != nil {
		return h.mutationError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHandler) mutationError(c echo.Context, err error) error {
	var vErr *service.ValidationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "listing not found"})
	case errors.Is(err, service.ErrNotOwner):
		return c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "not the listing owner"})
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
