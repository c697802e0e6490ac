package api

import (
	"context"
	"errors"
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/insightdelivered/electricity-bill-converter/internal/config"
)

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(cfg config.ServerConfig, h *Handler) *fiber.App {
	bodyLimit := cfg.BodyLimitMB << 20
	if bodyLimit <= 0 {
		bodyLimit = 32 << 20
	}

	app := fiber.New(fiber.Config{
		AppName:      "electricity-bill-converter",
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			h.logger.Warn("request failed", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
			return writeError(c, status, err.Error())
		},
	})

	// Recover from any panics to prevent server crash
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	h.RegisterRoutes(app, cfg.RateLimit)

	// Serve the web client
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			return c.SendFile(cfg.StaticDir + "/index.html")
		})
	}
	return app
}

// RegisterRoutes sets up the API routes. Upload routes are rate limited per
// client and globally, since every upload costs a PDF parse.
func (h *Handler) RegisterRoutes(app *fiber.App, rl config.RateLimit) {
	api := app.Group("/api")
	api.Get("/health", h.HandleHealth)

	uploads := []fiber.Handler{}
	if rl.Max > 0 {
		uploads = append(uploads, limiter.New(limiter.Config{
			Max:        rl.Max,
			Expiration: rl.Expiration,
			LimitReached: func(c *fiber.Ctx) error {
				return writeError(c, fiber.StatusTooManyRequests, "Too many uploads, slow down.")
			},
		}))
	}
	if rl.PerSecond > 0 {
		uploads = append(uploads, globalLimit(rate.NewLimiter(rate.Limit(rl.PerSecond), max(rl.Burst, 1))))
	}

	limited := func(handler fiber.Handler) []fiber.Handler {
		return append(slices.Clone(uploads), handler)
	}

	bills := api.Group("/bills")
	bills.Post("/parse", limited(h.HandleParse)...)
	bills.Post("/batch", limited(h.HandleParseBatch)...)
	bills.Post("/summary", limited(h.HandleSummary)...)
	bills.Get("/export", h.HandleExport)
	bills.Get("/", h.HandleListBills)
	bills.Post("/", h.HandleSaveBill)
	bills.Get("/:id", h.HandleGetBill)
	bills.Delete("/:id", h.HandleDeleteBill)

	parties := api.Group("/parties")
	parties.Get("/", h.HandleListParties)
	parties.Post("/", h.HandleCreateParty)
	parties.Delete("/:id", h.HandleDeleteParty)
}

func globalLimit(l *rate.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow() {
			return writeError(c, fiber.StatusTooManyRequests, "Server busy, try again shortly.")
		}
		return c.Next()
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func Shutdown(ctx context.Context, app *fiber.App) error {
	return app.ShutdownWithContext(ctx)
}
