package ad

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/craft/internal/model"
)

var ErrAdNotFound = errors.New("ad not found")

// Repository provides CRUD operations for generated ads in the database.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveAd inserts an ad record and returns its UUID. Saving an id that already
// exists is a no-op.
func (r *Repository) SaveAd(ctx context.Context, ad model.Ad) (uuid.UUID, error) {
	query := `
		INSERT INTO ads (id, title, description, headline, image_path, image_url, thumbnail_url, aspect_ratio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
    `

	_, err := r.db.ExecContext(
		ctx, query,
		ad.ID, ad.Title, ad.Description, ad.Headline,
		ad.ImagePath, ad.ImageURL, ad.ThumbnailURL, string(ad.AspectRatio), ad.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save: failed to save ad: %w", err)
	}

	return ad.ID, nil
}

// GetAd retrieves an ad record by ID from the database.
func (r *Repository) GetAd(ctx context.Context, id uuid.UUID) (model.Ad, error) {
	query := `
		SELECT title, description, headline, image_path, image_url, thumbnail_url, aspect_ratio, created_at
		FROM ads
		WHERE id = $1
    `

	var ad model.Ad
	var aspect string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ad.Title, &ad.Description, &ad.Headline,
		&ad.ImagePath, &ad.ImageURL, &ad.ThumbnailURL, &aspect, &ad.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ad{}, ErrAdNotFound
		}

		return model.Ad{}, fmt.Errorf("get: failed to get ad: %w", err)
	}

	ad.ID = id
	ad.AspectRatio = model.AspectRatio(aspect)

	return ad, nil
}

// ListAds returns a page of ad records, newest first.
func (r *Repository) ListAds(ctx context.Context, limit, offset int) ([]model.Ad, error) {
	query := `
		SELECT id, title, description, headline, image_path, image_url, thumbnail_url, aspect_ratio, created_at
		FROM ads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
    `

	rows, err := r.db.Master.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list: failed to query ads: %w", err)
	}
	defer rows.Close()

	ads := make([]model.Ad, 0, limit)
	for rows.Next() {
		var ad model.Ad
		var aspect string

		if err := rows.Scan(
			&ad.ID, &ad.Title, &ad.Description, &ad.Headline,
			&ad.ImagePath, &ad.ImageURL, &ad.ThumbnailURL, &aspect, &ad.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list: failed to scan ad: %w", err)
		}

		ad.AspectRatio = model.AspectRatio(aspect)
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: failed to iterate ads: %w", err)
	}

	return ads, nil
}

// DeleteAd deletes an ad record by ID from the database.
func (r *Repository) DeleteAd(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM ads WHERE id = $1
    `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete ad: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrAdNotFound
	}

	return nil
}
