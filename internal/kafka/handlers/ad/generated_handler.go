package ad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/model"
)

// service defines the interface for recording generated ads.
type service interface {
	RecordAd(ctx context.Context, ev model.AdGenerated) (uuid.UUID, error)
}

// GeneratedHandler handles Kafka messages announcing generated ads.
type GeneratedHandler struct {
	service service
}

// NewGeneratedHandler creates a new handler with the given service.
func NewGeneratedHandler(s service) *GeneratedHandler {
	return &GeneratedHandler{service: s}
}

// Handle unmarshals an AdGenerated event and records it in the ad library.
func (h *GeneratedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev model.AdGenerated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	if ev.ID == uuid.Nil || ev.ImagePath == "" {
		return errors.New("invalid event: missing id or image path")
	}

	id, err := h.service.RecordAd(ctx, ev)
	if err != nil {
		return fmt.Errorf("record ad: %w", err)
	}

	zlog.Logger.Info().Str("ad_id", id.String()).Msg("ad recorded")

	return nil
}
