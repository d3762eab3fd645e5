// handlers/web/settings.go
package web

import (
	"context"
	"io"

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

// maxWallpaperWidth bounds what we ship to the backend; anything wider
// gets downscaled first.
const maxWallpaperWidth = 2560

type SettingsHandler struct {
	config   *config.Config
	client   *api.Client
	cache    *query.Cache
	sessions *storage.SessionStore
	toasts   *notify.Store
}

func NewSettingsHandler(cfg *config.Config, client *api.Client, cache *query.Cache, sessions *storage.SessionStore, toasts *notify.Store) *SettingsHandler {
	return &SettingsHandler{
		config:   cfg,
		client:   client,
		cache:    cache,
		sessions: sessions,
		toasts:   toasts,
	}
}

// ShowSettings renders the settings page
func (h *SettingsHandler) ShowSettings(c *fiber.Ctx) error {
	settings, err := h.fetch(c)
	if err != nil {
		if api.IsCancelled(err) {
			return nil
		}
		return err
	}

	user, _ := c.Locals("user").(models.User)

	return c.Render("settings", fiber.Map{
		"User":      user,
		"Settings":  settings,
		"Toast":     h.toasts.Current(middleware.SessionID(c)),
		"CSRFToken": c.Locals("csrf"),
		"Lang":      middleware.Lang(c),
	})
}

// HandleUpdateSettings sends the partial patch and mirrors the theme
// into a cookie, the client-side fallback cache of the server value.
func (h *SettingsHandler) HandleUpdateSettings(c *fiber.Ctx) error {
	var req models.UpdateSettingsRequest

	if name := c.FormValue("name"); name != "" {
		req.Name = &name
	}
	if theme := c.FormValue("theme"); theme != "" {
		req.Theme = &theme
	}
	if c.FormValue("compact_mode") != "" {
		compact := c.FormValue("compact_mode") == "on" || c.FormValue("compact_mode") == "true"
		req.CompactMode = &compact
	}

	updated, err := h.client.UpdateSettings(c.UserContext(), req)
	if err != nil {
		return c.Redirect("/settings")
	}

	h.cache.Invalidate(query.ForSession(middleware.SessionID(c)).Settings())

	// A profile-name change also lives in the session's user record;
	// merge it without touching the token.
	if req.Name != nil {
		sid := middleware.SessionID(c)
		if err := h.sessions.UpdateUser(sid, storage.UserPatch{Name: req.Name}); err != nil {
			utils.Log.Warn("session user update failed for %s: %v", sid, err)
		}
	}

	if req.Theme != nil {
		c.Cookie(&fiber.Cookie{
			Name:     "pathlog_theme",
			Value:    updated.Theme,
			MaxAge:   365 * 24 * 3600,
			SameSite: "Lax",
		})
	}

	h.toasts.Success(c.UserContext(), "toast_settings_saved")
	return c.Redirect("/settings")
}

// HandleWallpaperUpload forwards the image to the backend, downscaling
// oversized files first.
func (h *SettingsHandler) HandleWallpaperUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("wallpaper")
	if err != nil {
		return utils.BadRequestError("No wallpaper file in request", err)
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !utils.IsImage(contentType) {
		return utils.UnprocessableError("Wallpaper must be a JPEG or PNG image", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.InternalServerError("Failed to read upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.InternalServerError("Failed to read upload", err)
	}

	optimized, err := utils.OptimizeImage(data, maxWallpaperWidth)
	if err != nil {
		return utils.UnprocessableError("Could not decode image", err)
	}

	if _, err := h.client.UploadWallpaper(c.UserContext(), fileHeader.Filename, optimized); err != nil {
		return c.Redirect("/settings")
	}

	h.cache.Invalidate(query.ForSession(middleware.SessionID(c)).Settings())
	h.toasts.Success(c.UserContext(), "toast_wallpaper_saved")
	return c.Redirect("/settings")
}

func (h *SettingsHandler) fetch(c *fiber.Ctx) (*models.UserSettings, error) {
	data, err := h.cache.Fetch(c.UserContext(), query.ForSession(middleware.SessionID(c)).Settings(), func(ctx context.Context) (interface{}, error) {
		return h.client.GetSettings(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.(*models.UserSettings), nil
}
