package model

import (
	"time"

	"github.com/google/uuid"
)

// AspectRatio is the shape requested for the generated ad.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// AdRequest is the input of a single ad generation run.
type AdRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ImageBase64 string      `json:"imageBase64"` // data URL: data:image/<png|jpeg|webp>;base64,...
	AspectRatio AspectRatio `json:"aspectRatio,omitempty"`
}

// GeneratedAd is the result returned to the caller.
type GeneratedAd struct {
	ID        uuid.UUID `json:"-"`
	AdCopy    string    `json:"adCopy"`
	ImageURL  string    `json:"imageUrl"`
	ImagePath string    `json:"-"` // object name within the bucket
}

// Ad is a persisted ad library record.
type Ad struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Headline     string      `json:"headline"`
	ImagePath    string      `json:"image_path"`
	ImageURL     string      `json:"image_url"`
	ThumbnailURL string      `json:"thumbnail_url"`
	AspectRatio  AspectRatio `json:"aspect_ratio"`
	CreatedAt    time.Time   `json:"created_at"`
}
