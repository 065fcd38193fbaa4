package ad

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/model"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type fakeService struct {
	got []model.AdGenerated
	err error
}

func (f *fakeService) RecordAd(_ context.Context, ev model.AdGenerated) (uuid.UUID, error) {
	f.got = append(f.got, ev)
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return ev.ID, nil
}

func TestHandleRecordsEvent(t *testing.T) {
	svc := &fakeService{}
	h := NewGeneratedHandler(svc)

	ev := model.AdGenerated{
		ID:          uuid.New(),
		Title:       "Sneakers",
		AdCopy:      "Run the city",
		ImagePath:   "public/ad-image-1.png",
		AspectRatio: model.AspectPortrait,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Handle(context.Background(), kafka.Message{Key: []byte(ev.ID.String()), Value: value}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(svc.got) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(svc.got))
	}
	if svc.got[0].ID != ev.ID || svc.got[0].AspectRatio != model.AspectPortrait {
		t.Fatalf("unexpected event %+v", svc.got[0])
	}
}

func TestHandleRejectsMalformedMessages(t *testing.T) {
	svc := &fakeService{}
	h := NewGeneratedHandler(svc)

	for name, value := range map[string]string{
		"not json":   "{",
		"missing id": `{"image_path":"public/a.png"}`,
		"no path":    `{"id":"` + uuid.NewString() + `"}`,
	} {
		if err := h.Handle(context.Background(), kafka.Message{Value: []byte(value)}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if len(svc.got) != 0 {
		t.Fatalf("service should not be called, got %d calls", len(svc.got))
	}
}

func TestHandlePropagatesServiceError(t *testing.T) {
	boom := errors.New("db down")
	h := NewGeneratedHandler(&fakeService{err: boom})

	value, _ := json.Marshal(model.AdGenerated{ID: uuid.New(), ImagePath: "public/a.png"})
	err := h.Handle(context.Background(), kafka.Message{Value: value})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped service error, got %v", err)
	}
}
