package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"

	"pathlog/api"
	apihandlers "pathlog/handlers/api"
	"pathlog/handlers/web"
	"pathlog/middleware"
	"pathlog/notify"
	"pathlog/query"
	"pathlog/storage"
	"pathlog/utils"

	"pathlog/config"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}

	if c.Get("HX-Request") != "" {
		return true
	}

	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	utils.Log.Info("Initializing PathLog...")

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Session persistence
	db, err := storage.InitDB(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open database: %v", err)
		return
	}
	defer db.Close()

	sessions, err := storage.NewSessionStore(db, cfg.Encryption.Key)
	if err != nil {
		utils.Log.Error("Failed to initialize session store: %v", err)
		return
	}

	// Toasts: single visible slot per session, pushed to open tabs
	hub := notify.NewHub()
	toasts := notify.NewStore(hub)

	// Backend client: token injection on the way out, classification on
	// the way back, session invalidation on 401
	apiClient := api.NewClient(cfg.API.BaseURL, cfg.APITimeout(), sessions, toasts, sessions.Invalidate)

	// Query cache with a 5 minute staleness safety net
	cache := query.NewCache(5 * time.Minute)

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")

	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("upper", strings.ToUpper)
	engine.AddFunc("title", strings.Title)
	engine.AddFunc("trim", strings.TrimSpace)

	// Handlers pass the locale LocaleMiddleware resolved into the render
	// data, so translated text follows the request's language.
	engine.AddFunc("t", func(lang, messageID string) string {
		return utils.T(utils.GetLocalizer(lang), messageID)
	})

	engine.AddFunc("statusLabel", func(status string) string {
		if status == "" {
			return "Unknown"
		}
		return strings.ToUpper(status[:1]) + status[1:]
	})

	engine.AddFunc("formatDate", func(date string) string {
		if parsed, err := time.Parse("2006-01-02", date); err == nil {
			return parsed.Format("Jan 02, 2006")
		}
		return date
	})

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main", // Default layout
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			// Session expiry is handled here once, however many calls
			// failed with it: the session is already cleared, the
			// browser just needs to land on the login page.
			if api.IsKind(err, api.KindUnauthorized) {
				if isAPIRequest(c) {
					return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
						"error":    "Session expired",
						"redirect": "/login",
					})
				}
				return c.Redirect("/login")
			}

			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Status > 0 {
				code = apiErr.Status
			} else if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New()) // Recover from panics
	app.Use(logger.New())  // Request logging
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:;",
	}))

	app.Use(middleware.LocaleMiddleware())
	app.Use(middleware.EnsureSession(cfg))
	app.Use(middleware.RateLimiter(cfg.RateLimit.Requests, cfg.RateLimitWindow()))
	app.Use(middleware.CSRFProtection())
	app.Use(func(c *fiber.Ctx) error {
		if c.Cookies("csrf_token") == "" {
			middleware.GenerateCSRFToken(c)
		} else {
			c.Locals("csrf", c.Cookies("csrf_token"))
		}
		return c.Next()
	})

	// Serve static files
	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Handlers
	authHandler := web.NewAuthHandler(cfg, apiClient, sessions, toasts, cache)
	jobsHandler := web.NewJobsHandler(cfg, apiClient, cache, toasts)
	settingsHandler := web.NewSettingsHandler(cfg, apiClient, cache, sessions, toasts)
	jobsAPIHandler := apihandlers.NewJobsHandler(apiClient, cache)
	notificationHandler := apihandlers.NewNotificationHandler(hub, toasts)
	i18nHandler := &apihandlers.I18nHandler{}

	// Tighter limiter on the credential endpoints
	authLimiter := middleware.RateLimiter(10, time.Minute)

	// Guest routes: authenticated visitors bounce to the dashboard
	guest := app.Group("", middleware.GuestOnly(sessions))
	guest.Get("/login", authHandler.ShowLogin)
	guest.Post("/login", authLimiter, authHandler.HandleLogin)
	guest.Get("/register", authHandler.ShowRegister)
	guest.Post("/register", authLimiter, authHandler.HandleRegister)
	guest.Get("/forgot-password", authHandler.ShowForgotPassword)
	guest.Post("/forgot-password", authLimiter, authHandler.HandleForgotPassword)
	guest.Get("/reset-password", authHandler.ShowResetPassword)
	guest.Post("/reset-password", authLimiter, authHandler.HandleResetPassword)

	app.Get("/logout", authHandler.HandleLogout)

	// Protected routes group
	protected := app.Group("", middleware.RequireAuth(sessions, cfg))

	protected.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/jobs") })
	protected.Get("/jobs", jobsHandler.HandleJobs)
	protected.Post("/jobs", jobsHandler.HandleCreateJob)
	protected.Get("/jobs/:id", jobsHandler.HandleJobDetail)
	protected.Post("/jobs/:id", jobsHandler.HandleUpdateJob)
	protected.Post("/jobs/:id/delete", jobsHandler.HandleDeleteJob)
	protected.Post("/jobs/bulk-delete", jobsHandler.HandleBulkDelete)

	protected.Get("/settings", settingsHandler.ShowSettings)
	protected.Post("/settings", settingsHandler.HandleUpdateSettings)
	protected.Post("/settings/wallpaper", settingsHandler.HandleWallpaperUpload)

	// API routes
	apiRoutes := protected.Group("/api")
	{
		apiRoutes.Get("/jobs", jobsAPIHandler.GetJobs)
		apiRoutes.Get("/jobs/:id", jobsAPIHandler.GetJob)

		apiRoutes.Get("/toast", notificationHandler.GetToast)
		apiRoutes.Post("/toast/hide", notificationHandler.HideToast)
		apiRoutes.Get("/notifications/stream", notificationHandler.HandleSSE)

		apiRoutes.Get("/i18n/:lang", i18nHandler.GetTranslations)
	}

	// WebSocket toast channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/notifications", websocket.New(notificationHandler.HandleWebSocket))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"subscribers": hub.Subscribers(),
			"cache_size":  cache.Size(),
			"time":        time.Now().Format(time.RFC3339),
		})
	})

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Not found",
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": "Page not found",
			"Code":  404,
		})
	})

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
