package ad

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/api/respond"
	"github.com/aliskhannn/craft/internal/model"
	"github.com/aliskhannn/craft/internal/pipeline"
	adrepo "github.com/aliskhannn/craft/internal/repository/ad"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// service defines the interface for ad-related operations.
type service interface {
	GenerateAd(ctx context.Context, req model.AdRequest) (model.GeneratedAd, error)
	ListAds(ctx context.Context, limit, offset int) ([]model.Ad, error)
	GetAd(ctx context.Context, id uuid.UUID) (model.Ad, error)
	DeleteAd(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP handlers for ad endpoints.
type Handler struct {
	service      service
	maxBodyBytes int64
}

// NewHandler creates a new Handler. Request bodies larger than maxBodyBytes are rejected.
func NewHandler(s service, maxBodyBytes int64) *Handler {
	return &Handler{service: s, maxBodyBytes: maxBodyBytes}
}

// Generate runs the ad generation pipeline for a JSON request and responds
// with the ad copy and the public URL of the generated image.
func (h *Handler) Generate(c *ginext.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req model.AdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			zlog.Logger.Warn().Int64("limit", tooLarge.Limit).Msg("request body too large")
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}

		zlog.Logger.Err(err).Msg("failed to decode generate request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	ad, err := h.service.GenerateAd(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrValidation) {
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("ad generation failed: %w", err))
		return
	}

	respond.JSON(c, http.StatusOK, ad)
}

// List returns a page of generated ads, newest first.
func (h *Handler) List(c *ginext.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit"))
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid offset"))
		return
	}

	ads, err := h.service.ListAds(c.Request.Context(), limit, offset)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list ads")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to list ads"))
		return
	}

	respond.OK(c, ads)
}

// Get returns a single generated ad by ID.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ad, err := h.service.GetAd(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, adrepo.ErrAdNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("ad not found"))
			return
		}

		zlog.Logger.Err(err).Str("ad_id", id.String()).Msg("failed to get ad")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get ad"))
		return
	}

	respond.OK(c, ad)
}

// Delete removes an ad and its stored images.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteAd(c.Request.Context(), id); err != nil {
		if errors.Is(err, adrepo.ErrAdNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("ad not found"))
			return
		}

		zlog.Logger.Err(err).Str("ad_id", id.String()).Msg("failed to delete ad")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to delete ad: %w", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// Health reports that the process is serving requests.
func (h *Handler) Health(c *ginext.Context) {
	respond.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		zlog.Logger.Warn().Str("id", c.Param("id")).Msg("invalid ad id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *ginext.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
