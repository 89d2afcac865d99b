package handler

import (
	"net/http"

	"polar-billing-bridge/internal/dto"
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/service"

	"github.com/labstack/echo/v4"
)

// AdminHandler exposes administrative subscription and catalog operations.
type AdminHandler struct {
	subscriptionService service.SubscriptionService
	checkoutService     service.CheckoutService
	catalogService      service.CatalogService
}

func NewAdminHandler(
	subscriptionService service.SubscriptionService,
	checkoutService service.CheckoutService,
	catalogService service.CatalogService,
) *AdminHandler {
	return &AdminHandler{
		subscriptionService: subscriptionService,
		checkoutService:     checkoutService,
		catalogService:      catalogService,
	}
}

func (h *AdminHandler) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := h.subscriptionService.GetSubscription(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if sub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}

	return c.JSON(http.StatusOK, sub)
}

// UpdateSubscription overwrites a mirrored subscription. Unknown ids are 404;
// writes older than the stored row are accepted and reported as stale.
func (h *AdminHandler) UpdateSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var sub model.Subscription
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	sub.ExternalID = c.Param("id")

	res, err := h.checkoutService.UpdateSubscription(ctx, &sub)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ReconcileResponse{RowID: res.RowID, Outcome: string(res.Outcome)})
}

func (h *AdminHandler) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CancelSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := h.checkoutService.CancelSubscription(ctx, c.Param("id"), req.Revoke)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *AdminHandler) ChangeSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ChangeSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := h.checkoutService.ChangeSubscription(ctx, c.Param("id"), req.ProductID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *AdminHandler) SyncProducts(c echo.Context) error {
	ctx := c.Request().Context()

	n, err := h.catalogService.SyncProducts(ctx)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.SyncProductsResponse{Synced: n})
}
