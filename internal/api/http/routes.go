package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp"

	"github.com/i474232898/city-weather/internal/logger"
	"github.com/i474232898/city-weather/internal/weather"
)

var validate = validator.New()

// streamKeepAlive is how often an idle event stream writes a comment so a
// gone client is noticed.
var streamKeepAlive = 15 * time.Second

// Controller is what the presentation layer may do with the weather state.
type Controller interface {
	Catalog() *weather.Catalog
	State() weather.State
	Subscribe() (<-chan weather.State, func(), error)
	SelectCity(city weather.City) error
	FetchWeather() error
	RetryFetch() error
	StartPolling() error
	StopPolling() error
}

// NewApp builds the fiber application with middleware, error handling and
// all routes registered.
func NewApp(svc Controller, log logger.Logger) *fiber.App {
	log = log.WithField("component", "http")

	app := fiber.New(fiber.Config{
		AppName:               "city-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "city-weather",
		})
	})

	RegisterRoutes(app, svc)
	return app
}

func requestLogger(log logger.Logger) fiber.Handler {
	if !logger.IsDebugEnabled(log) {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debugf("%s %s -> %d in %v", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
		return err
	}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Controller) {
	v1 := app.Group("/api/v1")

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(svc.Catalog().All())
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(svc.State())
	})

	v1.Put("/weather/city", func(c *fiber.Ctx) error {
		var req selectCityRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		city, err := svc.Catalog().Lookup(req.City)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return accepted(c, svc, svc.SelectCity(city))
	})

	v1.Post("/weather/fetch", func(c *fiber.Ctx) error {
		return accepted(c, svc, svc.FetchWeather())
	})

	v1.Post("/weather/retry", func(c *fiber.Ctx) error {
		return accepted(c, svc, svc.RetryFetch())
	})

	v1.Post("/polling/start", func(c *fiber.Ctx) error {
		return accepted(c, svc, svc.StartPolling())
	})

	v1.Post("/polling/stop", func(c *fiber.Ctx) error {
		return accepted(c, svc, svc.StopPolling())
	})

	v1.Get("/weather/stream", func(c *fiber.Ctx) error {
		updates, cancel, err := svc.Subscribe()
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		keepAlive := streamKeepAlive
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()

			for {
				select {
				case st, ok := <-updates:
					if !ok {
						return
					}
					payload, err := json.Marshal(st)
					if err != nil {
						return
					}
					if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
				}
				// A flush error means the client went away.
				if err := w.Flush(); err != nil {
					return
				}
			}
		}))
		return nil
	})
}

// selectCityRequest is the body of PUT /weather/city; City is an ID or a
// display name.
type selectCityRequest struct {
	City string `json:"city" validate:"required"`
}

func accepted(c *fiber.Ctx, svc Controller, err error) error {
	if err != nil {
		if errors.Is(err, weather.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(svc.State())
}
