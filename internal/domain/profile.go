package domain

import "time"

type Profile struct {
	ID           string    `json:"id" db:"id"`
	Nickname     string    `json:"nickname" db:"nickname"`
	Age          int       `json:"age" db:"age"`
	ThumbnailURL *string   `json:"thumbnail_url" db:"thumbnail_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Thumbnail returns the stored avatar URL or an empty string.
func (p Profile) Thumbnail() string {
	if p.ThumbnailURL == nil {
		return ""
	}
	return *p.ThumbnailURL
}

type CreateProfileRequest struct {
	Nickname     string  `json:"nickname"`
	Age          int     `json:"age"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// UpdateProfileRequest carries only the fields the caller wants changed.
// UpdatedAt is set by the profile service, never by callers.
type UpdateProfileRequest struct {
	ID           string    `json:"-"`
	Nickname     *string   `json:"nickname,omitempty"`
	Age          *int      `json:"age,omitempty"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
