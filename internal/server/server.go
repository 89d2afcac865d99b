package server

import (
	"context"
	"net/http"
	"time"

	"polar-billing-bridge/internal/handler"
	"polar-billing-bridge/internal/middleware"
	"polar-billing-bridge/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	WebhookPath string
	JWTSecret   string
}

type Server struct {
	echo           *echo.Echo
	opts           Options
	webhookHandler *handler.WebhookHandler
	billingHandler *handler.BillingHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(
	opts Options,
	webhookService service.WebhookService,
	subscriptionService service.SubscriptionService,
	checkoutService service.CheckoutService,
	catalogService service.CatalogService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())

	s := &Server{
		echo:           e,
		opts:           opts,
		webhookHandler: handler.NewWebhookHandler(webhookService),
		billingHandler: handler.NewBillingHandler(subscriptionService, checkoutService),
		adminHandler:   handler.NewAdminHandler(subscriptionService, checkoutService, catalogService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// -------- polar webhooks --------
	s.echo.POST(s.opts.WebhookPath, s.webhookHandler.PolarWebhook)

	api := s.echo.Group("/api")
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- billing (signed-in user) --------
	billing := api.Group("/billing", echomw.CORS(), middleware.AuthMiddleware(s.opts.JWTSecret))
	billing.GET("/subscription", s.billingHandler.CurrentSubscription)
	billing.GET("/subscriptions", s.billingHandler.ListSubscriptions)
	billing.GET("/trial", s.billingHandler.TrialStatus)
	billing.GET("/products", s.billingHandler.ListProducts)
	billing.GET("/orders", s.billingHandler.ListOrders)
	billing.GET("/benefits", s.billingHandler.ListBenefitGrants)
	billing.POST("/checkout", s.billingHandler.CreateCheckoutLink)
	billing.POST("/portal", s.billingHandler.CreatePortalLink)

	// -------- admin --------
	admin := api.Group("/admin", middleware.AuthMiddleware(s.opts.JWTSecret), middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/subscriptions/:id", s.adminHandler.GetSubscription)
	admin.PUT("/subscriptions/:id", s.adminHandler.UpdateSubscription)
	admin.POST("/subscriptions/:id/cancel", s.adminHandler.CancelSubscription)
	admin.POST("/subscriptions/:id/change", s.adminHandler.ChangeSubscription)
	admin.POST("/products/sync", s.adminHandler.SyncProducts)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
