package handler

import (
	"errors"
	"net/http"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/normalize"
	"polar-billing-bridge/internal/reconcile"
	"polar-billing-bridge/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// toHTTPError maps service errors onto app API responses.
func toHTTPError(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, service.ErrInvalidInput), normalize.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, reconcile.ErrNotFound),
		client.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		log.Error().Err(err).Msg("polar api call failed")
		return echo.NewHTTPError(http.StatusBadGateway, "upstream billing provider error")
	default:
		return err
	}
}
