package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsd-hamsa/powerset/internal/store"
	"github.com/dsd-hamsa/powerset/pkg/logger"
)

// NewApp builds the operational HTTP surface exposed during long fetch runs:
// Prometheus metrics and a store health check. st may be nil when the run
// skips persistence.
func NewApp(st store.Store) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := fiber.StatusOK

		if st == nil {
			checks["store"] = "disabled"
		} else {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				checks["store"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	return app
}

// Serve starts the app on the given port in the background. Port 0 disables
// the surface entirely.
func Serve(app *fiber.App, port int) {
	if port == 0 {
		return
	}
	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			logger.S().Warnw("metrics listener stopped", "error", err)
		}
	}()
}
