package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pathlog/api"
	"pathlog/config"
	"pathlog/storage"
)

// EnsureSession gives every visitor a session id cookie, authenticated
// or not, and tags the request context with it. The toast slot and the
// login flow both need the id before any login happens.
func EnsureSession(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(cfg.Session.CookieName)
		if sid == "" {
			sid = uuid.New().String()
			c.Cookie(&fiber.Cookie{
				Name:     cfg.Session.CookieName,
				Value:    sid,
				MaxAge:   int(cfg.SessionExpiry().Seconds()),
				HTTPOnly: true,
				SameSite: "Lax",
			})
		}

		c.Locals("sessionID", sid)
		c.SetUserContext(api.WithSessionID(c.UserContext(), sid))
		return c.Next()
	}
}

// RequireAuth guards protected routes: without a live login the request
// is bounced to /login. With one, the session's user lands in locals
// for the templates and the local session token is verified so a
// tampered cookie cannot ride a persisted session.
func RequireAuth(store *storage.SessionStore, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := SessionID(c)

		sess := store.Get(sid)
		if !sess.IsAuthenticated() {
			return c.Redirect("/login")
		}

		if localToken := c.Cookies(cfg.Session.CookieName + "_token"); localToken != "" {
			if _, err := api.ValidateToken(localToken, cfg.Session.Secret); err != nil {
				store.Logout(sid)
				return c.Redirect("/login")
			}
		} else {
			store.Logout(sid)
			return c.Redirect("/login")
		}

		c.Locals("user", *sess.User)
		return c.Next()
	}
}

// GuestOnly bounces already-authenticated visitors off the login and
// registration pages to the dashboard.
func GuestOnly(store *storage.SessionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if store.IsAuthenticated(SessionID(c)) {
			return c.Redirect("/jobs")
		}
		return c.Next()
	}
}

// SessionID returns the session id EnsureSession put in locals.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("sessionID").(string)
	return sid
}
