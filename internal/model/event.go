package model

import (
	"time"

	"github.com/google/uuid"
)

// AdGenerated is published once an ad image is stored and its URL resolved.
type AdGenerated struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	AdCopy      string      `json:"ad_copy"`
	ImagePath   string      `json:"image_path"`
	ImageURL    string      `json:"image_url"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
	CreatedAt   time.Time   `json:"created_at"`
}
