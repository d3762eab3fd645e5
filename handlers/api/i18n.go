// handlers/api/i18n.go
package api

import (
	"github.com/gofiber/fiber/v2"

	"pathlog/utils"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang == "" {
		lang = "en"
	}

	// Only allow supported languages
	if lang != "en" && lang != "fr" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	// Create a map of common translation keys for client-side use
	translations := map[string]string{
		"error_network":         utils.T(localizer, "error_network"),
		"error_server":          utils.T(localizer, "error_server"),
		"error_validation":      utils.T(localizer, "error_validation"),
		"error_404":             utils.T(localizer, "error_404"),
		"toast_job_created":     utils.T(localizer, "toast_job_created"),
		"toast_job_updated":     utils.T(localizer, "toast_job_updated"),
		"toast_job_deleted":     utils.T(localizer, "toast_job_deleted"),
		"toast_jobs_deleted":    utils.T(localizer, "toast_jobs_deleted"),
		"toast_settings_saved":  utils.T(localizer, "toast_settings_saved"),
		"toast_wallpaper_saved": utils.T(localizer, "toast_wallpaper_saved"),
		"toast_password_reset":  utils.T(localizer, "toast_password_reset"),
		"confirm_delete_job":    utils.T(localizer, "confirm_delete_job"),
		"confirm_bulk_delete":   utils.T(localizer, "confirm_bulk_delete"),
		"confirm_yes":           utils.T(localizer, "confirm_yes"),
		"confirm_no":            utils.T(localizer, "confirm_no"),
		"jobs_loading":          utils.T(localizer, "jobs_loading"),
		"jobs_empty":            utils.T(localizer, "jobs_empty"),
	}

	return c.JSON(translations)
}
