package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/aliskhannn/craft/internal/dataurl"
	"github.com/aliskhannn/craft/internal/model"
)

// Output sizes accepted by the image edit API.
const (
	SizeSquare    = "1024x1024"
	SizeLandscape = "1536x1024"
	SizePortrait  = "1024x1536"
)

const thumbnailsDir = "public/thumbnails"

// fileStorage defines the interface for file storage.
// It allows saving and loading objects from a backend (e.g., MinIO, S3).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, data []byte) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Processor converts uploaded images into the format the image edit API expects
// and renders library thumbnails for generated ads.
type Processor struct {
	fileStorage fileStorage
}

// New creates a new Processor with the given file storage backend.
func New(fs fileStorage) *Processor {
	return &Processor{fileStorage: fs}
}

// SizeFor maps an aspect ratio to an output size. Unknown ratios fall back to square.
func SizeFor(ar model.AspectRatio) string {
	switch ar {
	case model.AspectLandscape:
		return SizeLandscape
	case model.AspectPortrait:
		return SizePortrait
	default:
		return SizeSquare
	}
}

// Normalize returns img as PNG bytes. PNG input is returned unchanged.
func (p *Processor) Normalize(img dataurl.Image) ([]byte, error) {
	if img.MimeType == dataurl.MimePNG {
		return img.Bytes, nil
	}

	src, err := decode(img)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", img.MimeType, err)
	}

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, src, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	return buf.Bytes(), nil
}

func decode(img dataurl.Image) (image.Image, error) {
	if img.MimeType == dataurl.MimeWEBP {
		return webp.Decode(bytes.NewReader(img.Bytes), &decoder.Options{})
	}

	return imaging.Decode(bytes.NewReader(img.Bytes))
}

// ThumbnailPath returns the object path Thumbnail writes for filename.
func ThumbnailPath(filename string) string {
	return path.Join(thumbnailsDir, filename)
}

// Thumbnail renders a width x height PNG thumbnail of the stored image at path
// and saves it under the thumbnails prefix. Returns the thumbnail object path.
func (p *Processor) Thumbnail(ctx context.Context, path, filename string, width, height int) (string, error) {
	// Load the generated image from storage.
	srcReader, err := p.fileStorage.Load(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to load generated image: %w", err)
	}
	defer srcReader.Close()

	src, err := imaging.Decode(srcReader)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Thumbnail(src, width, height, imaging.Lanczos)

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	dst, err := p.fileStorage.Save(ctx, thumbnailsDir, filename, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return dst, nil
}
