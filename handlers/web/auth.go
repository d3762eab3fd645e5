// handlers/web/auth.go
package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pathlog/api"
	"pathlog/config"
	"pathlog/middleware"
	"pathlog/models"
	"pathlog/notify"
	"pathlog/query"
	"pathlog/storage"
	"pathlog/utils"
)

type AuthHandler struct {
	config   *config.Config
	client   *api.Client
	sessions *storage.SessionStore
	toasts   *notify.Store
	cache    *query.Cache
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(cfg *config.Config, client *api.Client, sessions *storage.SessionStore, toasts *notify.Store, cache *query.Cache) *AuthHandler {
	return &AuthHandler{
		config:   cfg,
		client:   client,
		sessions: sessions,
		toasts:   toasts,
		cache:    cache,
	}
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{
		"CSRFToken": c.Locals("csrf"),
	})
}

// HandleLogin exchanges the form credentials with the backend and, on
// success, stores the session and moves to the dashboard.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	if email == "" || password == "" {
		return c.Status(400).Render("login", fiber.Map{
			"Error":     "Email and password are required",
			"Email":     email,
			"CSRFToken": c.Locals("csrf"),
		})
	}

	resp, err := h.client.Login(c.UserContext(), models.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return c.Status(formStatus(err)).Render("login", fiber.Map{
			"Error":     formMessage(err, "Invalid credentials or server error"),
			"Email":     email,
			"CSRFToken": c.Locals("csrf"),
		})
	}

	if err := h.establishSession(c, resp); err != nil {
		return c.Status(500).Render("login", fiber.Map{
			"Error":     "Failed to create session",
			"Email":     email,
			"CSRFToken": c.Locals("csrf"),
		})
	}

	return c.Redirect("/jobs")
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(c *fiber.Ctx) error {
	return c.Render("register", fiber.Map{
		"CSRFToken": c.Locals("csrf"),
	})
}

// HandleRegister creates the account. The confirmation mismatch check
// runs locally; no request leaves until the two passwords agree.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	confirmation := c.FormValue("password_confirmation")

	renderErr := func(status int, message string) error {
		return c.Status(status).Render("register", fiber.Map{
			"Error":     message,
			"Name":      name,
			"Email":     email,
			"CSRFToken": c.Locals("csrf"),
		})
	}

	if name == "" || email == "" || password == "" {
		return renderErr(400, "Name, email and password are required")
	}
	if password != confirmation {
		return renderErr(400, "Passwords do not match")
	}

	resp, err := h.client.Register(c.UserContext(), models.RegisterRequest{
		Name:                 name,
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirmation,
	})
	if err != nil {
		return renderErr(formStatus(err), formMessage(err, "Registration failed"))
	}

	if err := h.establishSession(c, resp); err != nil {
		return renderErr(500, "Failed to create session")
	}

	return c.Redirect("/jobs")
}

// HandleLogout revokes the token server-side as a courtesy and clears
// the local session regardless of how that went.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sid := middleware.SessionID(c)

	h.client.Logout(c.UserContext())

	if err := h.sessions.Logout(sid); err != nil {
		utils.Log.Error("failed to clear session %s: %v", sid, err)
	}
	h.cache.Invalidate(query.ForSession(sid).Root())

	c.Cookie(&fiber.Cookie{
		Name:   h.config.Session.CookieName + "_token",
		Value:  "",
		MaxAge: -1,
	})

	return c.Redirect("/login")
}

// ShowForgotPassword renders the request-reset page
func (h *AuthHandler) ShowForgotPassword(c *fiber.Ctx) error {
	return c.Render("forgot_password", fiber.Map{
		"CSRFToken": c.Locals("csrf"),
	})
}

// HandleForgotPassword always lands on the same confirmation text; the
// backend answers 200 whether or not the account exists, and this page
// must not leak more than that.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return c.Status(400).Render("forgot_password", fiber.Map{
			"Error":     "Email is required",
			"CSRFToken": c.Locals("csrf"),
		})
	}

	if err := h.client.ForgotPassword(c.UserContext(), email); err != nil {
		if !api.IsKind(err, api.KindValidation) {
			return c.Status(formStatus(err)).Render("forgot_password", fiber.Map{
				"Error":     formMessage(err, "Something went wrong, please try again"),
				"Email":     email,
				"CSRFToken": c.Locals("csrf"),
			})
		}
	}

	return c.Render("forgot_password", fiber.Map{
		"Sent":      true,
		"CSRFToken": c.Locals("csrf"),
	})
}

// ShowResetPassword renders the reset form for an emailed token link.
func (h *AuthHandler) ShowResetPassword(c *fiber.Ctx) error {
	return c.Render("reset_password", fiber.Map{
		"Token":     c.Query("token"),
		"Email":     c.Query("email"),
		"CSRFToken": c.Locals("csrf"),
	})
}

// HandleResetPassword redeems the reset token. Mismatched confirmation
// is rejected here, before any network call.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	token := c.FormValue("token")
	password := c.FormValue("password")
	confirmation := c.FormValue("password_confirmation")

	renderErr := func(status int, message string) error {
		return c.Status(status).Render("reset_password", fiber.Map{
			"Error":     message,
			"Token":     token,
			"Email":     email,
			"CSRFToken": c.Locals("csrf"),
		})
	}

	if email == "" || token == "" || password == "" {
		return renderErr(400, "All fields are required")
	}
	if password != confirmation {
		return renderErr(400, "Passwords do not match")
	}

	err := h.client.ResetPassword(c.UserContext(), models.ResetPasswordRequest{
		Email:                email,
		Token:                token,
		Password:             password,
		PasswordConfirmation: confirmation,
	})
	if err != nil {
		return renderErr(formStatus(err), formMessage(err, "Password reset failed"))
	}

	h.toasts.Show(middleware.SessionID(c), "toast_password_reset", notify.KindSuccess)
	return c.Redirect("/login")
}

// establishSession records the backend login and signs the local
// session token cookie.
func (h *AuthHandler) establishSession(c *fiber.Ctx, resp *models.AuthResponse) error {
	sid := middleware.SessionID(c)

	if err := h.sessions.SetAuth(sid, resp.User, resp.Token); err != nil {
		return err
	}

	localToken, err := api.GenerateToken(resp.User.ID, resp.User.Email, h.config.Session.Secret, h.config.SessionExpiry())
	if err != nil {
		h.sessions.Logout(sid)
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.config.Session.CookieName + "_token",
		Value:    localToken,
		MaxAge:   int(h.config.SessionExpiry().Seconds()),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return nil
}

// formStatus maps a classified backend error onto the status the form
// re-render should carry.
func formStatus(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		return apiErr.Status
	}
	return 502
}

// formMessage extracts the most specific message a form can show inline
// next to the toast the client already emitted.
func formMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.FirstFieldMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
