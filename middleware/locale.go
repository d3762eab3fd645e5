package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"pathlog/utils"
)

// LocaleMiddleware detects and sets the user's locale
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := ""

		// 1. Try to get language from query parameter
		lang = c.Query("lang")

		// 2. Try to get language from cookie
		if lang == "" {
			lang = c.Cookies("lang")
		}

		// 3. Try to get language from Accept-Language header
		if lang == "" {
			acceptLang := c.Get("Accept-Language")
			if strings.HasPrefix(acceptLang, "fr") {
				lang = "fr"
			} else {
				lang = "en"
			}
		}

		// Only allow supported languages
		if lang != "en" && lang != "fr" {
			lang = "en"
		}

		// Get localizer for this language
		localizer := utils.GetLocalizer(lang)

		// Store in context
		c.Locals("localizer", localizer)
		c.Locals("lang", lang)

		return c.Next()
	}
}

// Lang returns the locale LocaleMiddleware resolved for this request.
// Render paths pass it through to the template's translation func.
func Lang(c *fiber.Ctx) string {
	lang, _ := c.Locals("lang").(string)
	if lang == "" {
		return "en"
	}
	return lang
}
