package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

func main() {
	cfg := config.Load()

	logx.Info("starting echopad api server")

	container := NewContainer(cfg)
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "Echopad API",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           cfg.Server.IdleTimeout,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))
	app.Use(requestLogger())

	app.Get("/health", healthHandler(container))

	container.AccountAPI.RegisterRoutes(app, container.AuthMiddleware)
	container.InvitationAPI.RegisterRoutes(app, container.AuthMiddleware)
	container.LicensingAPI.RegisterRoutes(app, container.AuthMiddleware)
	container.DirectoryAPI.RegisterRoutes(app, container.AuthMiddleware)

	app.Use(notFoundHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.StartBackgroundServices(ctx)

	startServer(app, cfg)
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logx.WithFields(logx.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetRespHeader("X-Request-ID"),
		}).Info("request")
		return err
	}
}

func healthHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy"}
		status := fiber.StatusOK

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
		} else {
			health["db"] = "healthy"
		}
		if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
		} else {
			health["redis"] = "healthy"
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "route not found",
		"code":   "NOT_FOUND",
		"path":   c.Path(),
		"method": c.Method(),
	})
}

// globalErrorHandler renders every error, coded or not, as a JSON response.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	requestID := c.GetRespHeader("X-Request-ID")

	var coded *errx.Error
	if errors.As(err, &coded) {
		if coded.HTTPStatus >= fiber.StatusInternalServerError {
			logx.WithError(err).WithFields(logx.Fields{
				"path":       c.Path(),
				"request_id": requestID,
			}).Error("request failed")
		}
		response := fiber.Map{
			"error":      coded.Message,
			"code":       coded.Code,
			"type":       string(coded.Type),
			"request_id": requestID,
		}
		if len(coded.Details) > 0 {
			response["details"] = coded.Details
		}
		return c.Status(coded.HTTPStatus).JSON(response)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error":      fiberErr.Message,
			"code":       "HTTP_ERROR",
			"request_id": requestID,
		})
	}

	logx.WithError(err).WithFields(logx.Fields{
		"path":       c.Path(),
		"request_id": requestID,
	}).Error("unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal server error",
		"code":       "INTERNAL_ERROR",
		"request_id": requestID,
	})
}

func startServer(app *fiber.App, cfg *config.Config) {
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		logx.Infof("server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logx.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logx.Infof("received signal %v, shutting down", sig)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
	}
}
