package handler

import (
	"errors"
	"io"
	"net/http"

	"polar-billing-bridge/internal/service"
	"polar-billing-bridge/internal/webhook"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// PolarWebhook answers 400 with an empty body when the delivery is not
// verifiable and an empty 200 otherwise.
func (h *WebhookHandler) PolarWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.webhookService.HandleWebhook(ctx, c.Request().Header, body)
	if errors.Is(err, webhook.ErrInvalidSignature) {
		log.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("rejected webhook delivery")
		return c.NoContent(http.StatusBadRequest)
	}
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
