package ad

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/craft/internal/model"
	"github.com/aliskhannn/craft/internal/processor"
	adrepo "github.com/aliskhannn/craft/internal/repository/ad"
	"github.com/aliskhannn/craft/internal/storage/file"
)

const (
	thumbnailWidth  = 256
	thumbnailHeight = 256

	defaultPublishTimeout = 15 * time.Second
)

// generator runs the ad generation pipeline.
type generator interface {
	Generate(ctx context.Context, req model.AdRequest) (model.GeneratedAd, error)
}

// producer publishes ad events to a message broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, ev model.AdGenerated) error
}

// repository persists ad library records.
type repository interface {
	SaveAd(ctx context.Context, ad model.Ad) (uuid.UUID, error)
	GetAd(ctx context.Context, id uuid.UUID) (model.Ad, error)
	ListAds(ctx context.Context, limit, offset int) ([]model.Ad, error)
	DeleteAd(ctx context.Context, id uuid.UUID) error
}

// fileStorage resolves and removes stored objects.
type fileStorage interface {
	PublicURL(path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// thumbnailer renders a thumbnail of a stored image and returns its path.
type thumbnailer interface {
	Thumbnail(ctx context.Context, path, filename string, width, height int) (string, error)
}

// Service provides business logic for ads: generation, event publishing
// and the ad library.
type Service struct {
	generator   generator
	producer    producer
	repo        repository
	fileStorage fileStorage
	thumbnailer thumbnailer
	now         func() time.Time

	publishTimeout time.Duration
	publishing     sync.WaitGroup
}

// NewService creates a new Service.
func NewService(g generator, p producer, r repository, fs fileStorage, t thumbnailer) *Service {
	return &Service{
		generator:   g,
		producer:    p,
		repo:        r,
		fileStorage: fs,
		thumbnailer: t,
		now:         time.Now,

		publishTimeout: defaultPublishTimeout,
	}
}

// GenerateAd runs the pipeline and announces the stored ad in the background.
// The announcement outlives the request; a publish failure is logged only.
func (s *Service) GenerateAd(ctx context.Context, req model.AdRequest) (model.GeneratedAd, error) {
	if req.AspectRatio == "" {
		req.AspectRatio = model.AspectSquare
	}

	ad, err := s.generator.Generate(ctx, req)
	if err != nil {
		return model.GeneratedAd{}, err
	}

	ev := model.AdGenerated{
		ID:          ad.ID,
		Title:       req.Title,
		Description: req.Description,
		AdCopy:      ad.AdCopy,
		ImagePath:   ad.ImagePath,
		ImageURL:    ad.ImageURL,
		AspectRatio: req.AspectRatio,
		CreatedAt:   s.now().UTC(),
	}

	if s.producer != nil {
		s.publish(context.WithoutCancel(ctx), ev)
	}

	return ad, nil
}

func (s *Service) publish(ctx context.Context, ev model.AdGenerated) {
	s.publishing.Add(1)

	go func() {
		defer s.publishing.Done()

		ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		if err := s.producer.Produce(ctx, ev); err != nil {
			zlog.Logger.Err(err).Str("ad_id", ev.ID.String()).Msg("failed to publish ad generated event")
		}
	}()
}

// Wait blocks until every in-flight event publish has finished.
func (s *Service) Wait() {
	s.publishing.Wait()
}

// RecordAd stores a library record for a generated ad, rendering its thumbnail first.
// Redelivered events are accepted without creating duplicates.
func (s *Service) RecordAd(ctx context.Context, ev model.AdGenerated) (uuid.UUID, error) {
	if _, err := s.repo.GetAd(ctx, ev.ID); err == nil {
		return ev.ID, nil
	} else if !errors.Is(err, adrepo.ErrAdNotFound) {
		return uuid.Nil, fmt.Errorf("record: failed to look up ad: %w", err)
	}

	filename := path.Base(ev.ImagePath)
	thumbPath, err := s.thumbnailer.Thumbnail(ctx, ev.ImagePath, filename, thumbnailWidth, thumbnailHeight)
	if errors.Is(err, file.ErrObjectExists) {
		thumbPath, err = processor.ThumbnailPath(filename), nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("record: failed to render thumbnail: %w", err)
	}

	thumbURL, err := s.fileStorage.PublicURL(thumbPath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record: failed to resolve thumbnail url: %w", err)
	}

	id, err := s.repo.SaveAd(ctx, model.Ad{
		ID:           ev.ID,
		Title:        ev.Title,
		Description:  ev.Description,
		Headline:     ev.AdCopy,
		ImagePath:    ev.ImagePath,
		ImageURL:     ev.ImageURL,
		ThumbnailURL: thumbURL,
		AspectRatio:  ev.AspectRatio,
		CreatedAt:    ev.CreatedAt,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("record: failed to save ad: %w", err)
	}

	return id, nil
}

// ListAds returns library records, newest first.
func (s *Service) ListAds(ctx context.Context, limit, offset int) ([]model.Ad, error) {
	return s.repo.ListAds(ctx, limit, offset)
}

// GetAd returns a single library record.
func (s *Service) GetAd(ctx context.Context, id uuid.UUID) (model.Ad, error) {
	return s.repo.GetAd(ctx, id)
}

// DeleteAd removes the record, then its image and thumbnail objects.
func (s *Service) DeleteAd(ctx context.Context, id uuid.UUID) error {
	ad, err := s.repo.GetAd(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAd(ctx, id); err != nil {
		return err
	}

	paths := []string{ad.ImagePath}
	if ad.ThumbnailURL != "" {
		paths = append(paths, processor.ThumbnailPath(path.Base(ad.ImagePath)))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, p := range paths {
		eg.Go(func() error {
			if err := s.fileStorage.Delete(egCtx, p); err != nil {
				return fmt.Errorf("delete object %s: %w", p, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("delete: record removed but objects remain: %w", err)
	}

	return nil
}
