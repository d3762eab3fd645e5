package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/stretchr/testify/require"

	"pathlog/api"
	"pathlog/config"
	"pathlog/middleware"
	"pathlog/notify"
	"pathlog/query"
	"pathlog/storage"
	"pathlog/utils"
)

const testSessionID = "test-session"

// env wires the handlers against a fake backend, the way main does it
// against the real one.
type env struct {
	app      *fiber.App
	sessions *storage.SessionStore
	toasts   *notify.Store
	cache    *query.Cache
	cfg      *config.Config
}

func newEnv(t *testing.T, backend http.HandlerFunc) *env {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	db, err := storage.InitDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions, err := storage.NewSessionStore(db, "")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Session.Secret = "handler-test-secret"
	cfg.Session.CookieName = "pathlog_session"
	cfg.Session.ExpiryHrs = 1
	cfg.API.BaseURL = server.URL

	toasts := notify.NewStore(nil)
	cache := query.NewCache(0)
	client := api.NewClient(server.URL, 0, sessions, toasts, sessions.Invalidate)

	engine := html.New("../../templates", ".html")
	engine.AddFunc("t", func(lang, messageID string) string { return messageID })
	engine.AddFunc("statusLabel", func(status string) string { return status })
	engine.AddFunc("formatDate", func(date string) string { return date })

	// Same status mapping the real app's error handler applies.
	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Status > 0 {
				code = apiErr.Status
			} else if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).SendString(err.Error())
		},
	})
	app.Use(middleware.EnsureSession(cfg))

	authHandler := NewAuthHandler(cfg, client, sessions, toasts, cache)
	jobsHandler := NewJobsHandler(cfg, client, cache, toasts)

	app.Get("/login", authHandler.ShowLogin)
	app.Post("/login", authHandler.HandleLogin)
	app.Post("/register", authHandler.HandleRegister)
	app.Post("/reset-password", authHandler.HandleResetPassword)
	app.Get("/logout", authHandler.HandleLogout)

	app.Get("/jobs", jobsHandler.HandleJobs)
	app.Post("/jobs", jobsHandler.HandleCreateJob)
	app.Post("/jobs/bulk-delete", jobsHandler.HandleBulkDelete)
	app.Post("/jobs/:id/delete", jobsHandler.HandleDeleteJob)

	return &env{
		app:      app,
		sessions: sessions,
		toasts:   toasts,
		cache:    cache,
		cfg:      cfg,
	}
}

func (e *env) get(t *testing.T, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: e.cfg.Session.CookieName, Value: testSessionID})
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *env) postForm(t *testing.T, target string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: e.cfg.Session.CookieName, Value: testSessionID})
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
