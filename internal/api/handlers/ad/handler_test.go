package ad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/model"
	"github.com/aliskhannn/craft/internal/pipeline"
	adrepo "github.com/aliskhannn/craft/internal/repository/ad"
)

func TestMain(m *testing.M) {
	zlog.Init()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeService struct {
	generated model.GeneratedAd
	genErr    error
	genCalls  int

	ads       []model.Ad
	limit     int
	offset    int
	getErr    error
	deleteErr error
	deletedID uuid.UUID
}

func (f *fakeService) GenerateAd(_ context.Context, _ model.AdRequest) (model.GeneratedAd, error) {
	f.genCalls++
	return f.generated, f.genErr
}

func (f *fakeService) ListAds(_ context.Context, limit, offset int) ([]model.Ad, error) {
	f.limit, f.offset = limit, offset
	return f.ads, nil
}

func (f *fakeService) GetAd(_ context.Context, id uuid.UUID) (model.Ad, error) {
	if f.getErr != nil {
		return model.Ad{}, f.getErr
	}
	return model.Ad{ID: id, Headline: "headline"}, nil
}

func (f *fakeService) DeleteAd(_ context.Context, id uuid.UUID) error {
	f.deletedID = id
	return f.deleteErr
}

func newEngine(svc *fakeService, maxBody int64) *ginext.Engine {
	h := NewHandler(svc, maxBody)
	r := ginext.New()
	r.GET("/healthz", h.Health)
	r.POST("/generate-ad", h.Generate)
	r.GET("/api/ads", h.List)
	r.GET("/api/ads/:id", h.Get)
	r.DELETE("/api/ads/:id", h.Delete)
	return r
}

func serve(r *ginext.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestGenerateSuccess(t *testing.T) {
	svc := &fakeService{generated: model.GeneratedAd{
		ID: uuid.New(), AdCopy: "Hydrate boldly", ImageURL: "https://cdn/public/ad-image-1.png", ImagePath: "public/ad-image-1.png",
	}}
	r := newEngine(svc, 1<<20)

	w := serve(r, http.MethodPost, "/generate-ad", `{"title":"Eco Bottle","description":"steel","imageBase64":"data:image/png;base64,AA=="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["adCopy"] != "Hydrate boldly" || body["imageUrl"] != "https://cdn/public/ad-image-1.png" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(body) != 2 {
		t.Fatalf("response should only carry adCopy and imageUrl, got %v", body)
	}
}

func TestGenerateValidationIs400(t *testing.T) {
	svc := &fakeService{genErr: &pipeline.StageError{
		Stage: pipeline.StageValidating, Kind: pipeline.ErrValidation, Err: errors.New("missing required fields: title"),
	}}
	r := newEngine(svc, 1<<20)

	w := serve(r, http.MethodPost, "/generate-ad", `{"description":"d"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg, _ := decode(t, w)["error"].(string); !strings.Contains(msg, "title") {
		t.Fatalf("expected error naming the field, got %q", msg)
	}
}

func TestGenerateStageFailureIs500(t *testing.T) {
	svc := &fakeService{genErr: &pipeline.StageError{
		Stage: pipeline.StagePersisting, Kind: pipeline.ErrStorageWrite, Err: errors.New("bucket unavailable"),
	}}
	r := newEngine(svc, 1<<20)

	w := serve(r, http.MethodPost, "/generate-ad", `{"title":"t","description":"d","imageBase64":"data:image/png;base64,AA=="}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	msg, _ := decode(t, w)["error"].(string)
	if !strings.HasPrefix(msg, "ad generation failed: ") || !strings.Contains(msg, string(pipeline.StagePersisting)) {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, 1<<20)

	w := serve(r, http.MethodPost, "/generate-ad", `{"title":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if svc.genCalls != 0 {
		t.Fatal("service should not be called for a malformed body")
	}
}

func TestGenerateBodyTooLarge(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, 64)

	body := fmt.Sprintf(`{"title":"t","description":"d","imageBase64":"%s"}`, strings.Repeat("A", 256))
	w := serve(r, http.MethodPost, "/generate-ad", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if svc.genCalls != 0 {
		t.Fatal("service should not be called for an oversized body")
	}
}

func TestListClampsLimit(t *testing.T) {
	svc := &fakeService{ads: []model.Ad{{ID: uuid.New(), Headline: "a"}}}
	r := newEngine(svc, 0)

	w := serve(r, http.MethodGet, "/api/ads?limit=500&offset=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.limit != maxListLimit || svc.offset != 10 {
		t.Fatalf("unexpected paging limit=%d offset=%d", svc.limit, svc.offset)
	}
	if result, ok := decode(t, w)["result"].([]any); !ok || len(result) != 1 {
		t.Fatalf("unexpected result %s", w.Body.String())
	}

	serve(r, http.MethodGet, "/api/ads", "")
	if svc.limit != defaultListLimit || svc.offset != 0 {
		t.Fatalf("unexpected default paging limit=%d offset=%d", svc.limit, svc.offset)
	}

	if w := serve(r, http.MethodGet, "/api/ads?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/ads?offset=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative offset, got %d", w.Code)
	}
}

func TestGetAd(t *testing.T) {
	r := newEngine(&fakeService{}, 0)
	id := uuid.New()

	w := serve(r, http.MethodGet, "/api/ads/"+id.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := decode(t, w)["result"].(map[string]any)
	if result["id"] != id.String() {
		t.Fatalf("unexpected result %v", result)
	}

	if w := serve(r, http.MethodGet, "/api/ads/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	r = newEngine(&fakeService{getErr: adrepo.ErrAdNotFound}, 0)
	if w := serve(r, http.MethodGet, "/api/ads/"+id.String(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteAd(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, 0)
	id := uuid.New()

	w := serve(r, http.MethodDelete, "/api/ads/"+id.String(), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if svc.deletedID != id {
		t.Fatalf("expected delete of %s, got %s", id, svc.deletedID)
	}

	svc.deleteErr = adrepo.ErrAdNotFound
	if w := serve(r, http.MethodDelete, "/api/ads/"+id.String(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	svc.deleteErr = errors.New("storage down")
	if w := serve(r, http.MethodDelete, "/api/ads/"+id.String(), ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	w := serve(newEngine(&fakeService{}, 0), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}
