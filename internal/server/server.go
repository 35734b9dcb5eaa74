package server

import (
	"net/http"

	"marketplace-backend/internal/config"
	"marketplace-backend/internal/handler"
	authmw "marketplace-backend/internal/middleware"
	"marketplace-backend/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo           *echo.Echo
	paypalHandler  *handler.PaypalHandler
	listingHandler *handler.ListingHandler
	jwtSecret      string
}

func NewServer(
	log *zap.Logger,
	cfg *config.Config,
	paymentService service.PaymentService,
	listingService service.ListingService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error))
			return nil
		},
	}))

	s := &Server{
		echo:           e,
		paypalHandler:  handler.NewPaypalHandler(paymentService),
		listingHandler: handler.NewListingHandler(listingService),
		jwtSecret:      cfg.Auth.JWTSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- listings --------
	api.GET("/listings", s.listingHandler.Browse)
	api.GET("/listings/:id", s.listingHandler.Get)

	owned := api.Group("", authmw.Auth(s.jwtSecret))
	owned.POST("/listings", s.listingHandler.Create)
	owned.PUT("/listings/:id", s.listingHandler.Update)
	owned.DELETE("/listings/:id", s.listingHandler.Delete)

	// -------- paypal --------
	paypal := api.Group("/paypal")
	paypal.POST("/create-order", s.paypalHandler.CreateOrder)
	paypal.POST("/capture", s.paypalHandler.Capture)
	paypal.GET("/verify-order/:orderId/:listingId", s.paypalHandler.VerifyOrder)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
