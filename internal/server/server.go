package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grachmannico95/invoice-proof/internal/config"
	"github.com/grachmannico95/invoice-proof/internal/handler"
	"github.com/grachmannico95/invoice-proof/internal/middleware"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo                *echo.Echo
	cfg                 *config.Config
	logger              *logger.Logger
	invoiceHandler      *handler.InvoiceHandler
	tokenizationHandler *handler.TokenizationHandler
	healthHandler       *handler.HealthHandler
	proofStream         http.Handler
	ready               bool
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	invoiceHandler *handler.InvoiceHandler,
	tokenizationHandler *handler.TokenizationHandler,
	healthHandler *handler.HealthHandler,
	proofStream http.Handler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:                e,
		cfg:                 cfg,
		logger:              log,
		invoiceHandler:      invoiceHandler,
		tokenizationHandler: tokenizationHandler,
		healthHandler:       healthHandler,
		proofStream:         proofStream,
	}
}

func (s *Server) Start() error {
	s.setup()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setup() {
	if s.ready {
		return
	}
	s.ready = true
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.Tracing())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)
	s.echo.GET("/ready", s.healthHandler.Ready)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/invoices", s.invoiceHandler.Create)
	s.echo.GET("/invoices/:id", s.invoiceHandler.Get)
	s.echo.POST("/invoices/:id/cancel", s.invoiceHandler.Cancel)
	s.echo.POST("/invoices/:id/fundings", s.invoiceHandler.Fund)
	s.echo.GET("/invoices/:id/fundings", s.invoiceHandler.ListFundings)
	s.echo.POST("/invoices/:id/paid", s.invoiceHandler.MarkPaid)
	s.echo.GET("/invoices/:id/proofs", s.invoiceHandler.Proofs)
	s.echo.POST("/fundings/:id/refund", s.invoiceHandler.RefundFunding)

	s.echo.POST("/invoices/:id/tokenizations", s.tokenizationHandler.Start)
	s.echo.GET("/tokenizations/:id", s.tokenizationHandler.Get)
	s.echo.POST("/tokenizations/:id/signature", s.tokenizationHandler.SubmitSignature)
	s.echo.POST("/tokenizations/:id/resume", s.tokenizationHandler.Resume)
	s.echo.POST("/tokenizations/:id/cancel", s.tokenizationHandler.Cancel)
	s.echo.GET("/signing-requests/:account", s.tokenizationHandler.PendingSigningRequest)

	if s.proofStream != nil {
		s.echo.GET("/ws/proofs", echo.WrapHandler(s.proofStream))
	}
}

func (s *Server) Handler() *echo.Echo {
	s.setup()
	return s.echo
}
