package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/automax/routing/internal/handlers"
	"github.com/automax/routing/internal/middleware"
	"github.com/automax/routing/internal/services"
	"github.com/automax/routing/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the alarm scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *application) serve(ctx context.Context) error {
	scanner := services.NewAlarmScanner(a.cards, a.cfg.Routing.AlarmScanInterval, a.log, a.metrics)
	scanner.Start(ctx)
	defer scanner.Stop()

	validate := utils.NewValidator()
	jwtManager := utils.NewJWTManager(a.cfg.JWT.Secret, a.cfg.JWT.ExpireHour)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	healthHandler := handlers.NewHealthHandler(a.db)
	recordCardHandler := handlers.NewRecordCardHandler(a.recordCards, validate)
	groupHandler := handlers.NewGroupHandler(a.groupTree, validate)

	app := fiber.New(fiber.Config{
		AppName:      "Routing Engine",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))
	app.Use(middleware.ActionLogger(middleware.ActionLoggerConfig{
		Enabled:     true,
		SkipPaths:   []string{"/health", "/ready", "/metrics"},
		SkipMethods: []string{fiber.MethodOptions},
		Log:         a.log,
	}))

	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app.Group("/api/v1"), authMiddleware, recordCardHandler, groupHandler)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port)
		a.log.Info("Server starting", "addr", addr)
		errc <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		a.log.Error("Error during shutdown", "error", err)
	}
	a.log.Info("Server stopped")
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return utils.ErrorResponse(c, code, message)
}
