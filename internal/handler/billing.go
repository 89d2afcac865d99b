package handler

import (
	"net/http"

	"polar-billing-bridge/internal/dto"
	"polar-billing-bridge/internal/middleware"
	"polar-billing-bridge/internal/service"

	"github.com/labstack/echo/v4"
)

// BillingHandler serves the signed-in user's billing views.
type BillingHandler struct {
	subscriptionService service.SubscriptionService
	checkoutService     service.CheckoutService
}

func NewBillingHandler(subscriptionService service.SubscriptionService, checkoutService service.CheckoutService) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		checkoutService:     checkoutService,
	}
}

func (h *BillingHandler) CurrentSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	current, err := h.subscriptionService.GetCurrentSubscription(ctx, middleware.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	// null when the user has no current subscription
	return c.JSON(http.StatusOK, current)
}

func (h *BillingHandler) ListSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var (
		subs []*service.SubscriptionWithProduct
		err  error
	)
	if c.QueryParam("all") == "true" {
		subs, err = h.subscriptionService.ListAllUserSubscriptions(ctx, userID)
	} else {
		subs, err = h.subscriptionService.ListUserSubscriptions(ctx, userID)
	}
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, subs)
}

func (h *BillingHandler) TrialStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.subscriptionService.GetTrialStatus(ctx, middleware.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, status)
}

func (h *BillingHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.subscriptionService.ListProducts(ctx, c.QueryParam("includeArchived") == "true")
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, products)
}

func (h *BillingHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.subscriptionService.ListUserOrders(ctx, middleware.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *BillingHandler) ListBenefitGrants(c echo.Context) error {
	ctx := c.Request().Context()

	grants, err := h.subscriptionService.ListUserBenefitGrants(ctx, middleware.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, grants)
}

func (h *BillingHandler) CreateCheckoutLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	url, err := h.checkoutService.GenerateCheckoutLink(ctx, middleware.UserID(c), service.CheckoutLinkRequest{
		ProductIDs:         req.ProductIDs,
		SubscriptionID:     req.SubscriptionID,
		Origin:             req.Origin,
		SuccessURL:         req.SuccessURL,
		TrialInterval:      req.TrialInterval,
		TrialIntervalCount: req.TrialIntervalCount,
		Locale:             req.Locale,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.LinkResponse{URL: url})
}

func (h *BillingHandler) CreatePortalLink(c echo.Context) error {
	ctx := c.Request().Context()

	url, err := h.checkoutService.GenerateCustomerPortalLink(ctx, middleware.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.LinkResponse{URL: url})
}
