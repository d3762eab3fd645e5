package models

// UserSettings is the per-user workspace customization row. One row per
// session; fetched once and updated via partial patches.
type UserSettings struct {
	Name              string `json:"name"`
	Theme             string `json:"theme"`
	WallpaperURL      string `json:"wallpaper_url"`
	WallpaperThumbURL string `json:"wallpaper_thumb_url"`
	CompactMode       bool   `json:"compact_mode"`
}

// UpdateSettingsRequest carries only the fields being patched. Pointers
// distinguish "leave unchanged" from "set to zero value".
type UpdateSettingsRequest struct {
	Name        *string `json:"name,omitempty"`
	Theme       *string `json:"theme,omitempty"`
	CompactMode *bool   `json:"compact_mode,omitempty"`
}
