package api

import (
	"context"

	"pathlog/models"
)

type settingsEnvelope struct {
	Data models.UserSettings `json:"data"`
}

// GetSettings fetches the session user's workspace settings.
func (c *Client) GetSettings(ctx context.Context) (*models.UserSettings, error) {
	var resp settingsEnvelope
	if err := c.Get(ctx, "/settings", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateSettings sends a partial patch; unset fields stay untouched.
func (c *Client) UpdateSettings(ctx context.Context, req models.UpdateSettingsRequest) (*models.UserSettings, error) {
	var resp settingsEnvelope
	if err := c.Put(ctx, "/settings", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UploadWallpaper sends the image as multipart form data under the
// "wallpaper" field; the backend returns the settings row with the new
// wallpaper and thumbnail URLs.
func (c *Client) UploadWallpaper(ctx context.Context, filename string, file []byte) (*models.UserSettings, error) {
	var resp settingsEnvelope
	if err := c.PostMultipart(ctx, "/settings/wallpaper", "wallpaper", filename, file, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
