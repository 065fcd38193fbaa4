// Package pipeline runs the ad generation stages for a single request:
// research, copy generation, image normalization, image synthesis and persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/backoff"
	"github.com/aliskhannn/craft/internal/dataurl"
	"github.com/aliskhannn/craft/internal/model"
	"github.com/aliskhannn/craft/internal/openai"
	"github.com/aliskhannn/craft/internal/processor"
)

const (
	researchMaxTokens = 300
	copyMaxTokens     = 150
	copyTemperature   = 0.8

	editImageName = "input_image.png"
	editQuality   = "high"

	publicDir = "public"
)

// chatModel is a chat completions provider.
type chatModel interface {
	Chat(ctx context.Context, req openai.ChatRequest) (openai.ChatResponse, error)
}

// imageEditor is an image edit provider.
type imageEditor interface {
	EditImage(ctx context.Context, req openai.ImageEditRequest) (openai.ImageEditResponse, error)
}

// normalizer converts a decoded upload into PNG bytes.
type normalizer interface {
	Normalize(img dataurl.Image) ([]byte, error)
}

// objectStore persists generated images and resolves their public URLs.
type objectStore interface {
	Save(ctx context.Context, subdir, filename string, data []byte) (string, error)
	PublicURL(path string) (string, error)
}

// Models names the model used by each vendor stage.
type Models struct {
	Research string
	Copy     string
	Image    string
}

// Options configures a Pipeline. Zero values fall back to defaults.
type Options struct {
	Models        Models
	StageTimeout  time.Duration
	MaxImageBytes int
	Retry         retry.Strategy

	// OnTransition, if set, is called on every state change of a run.
	OnTransition func(id uuid.UUID, from, to Stage)
	// NewID generates the run id used in object names.
	NewID func() uuid.UUID
}

// Pipeline generates an ad from an AdRequest. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	chat       chatModel
	editor     imageEditor
	normalizer normalizer
	store      objectStore
	opts       Options
	steps      []step
}

// New creates a Pipeline with the given collaborators.
func New(chat chatModel, editor imageEditor, n normalizer, store objectStore, opts Options) *Pipeline {
	if opts.Models.Research == "" {
		opts.Models.Research = "gpt-4o-mini"
	}
	if opts.Models.Copy == "" {
		opts.Models.Copy = "gpt-4o"
	}
	if opts.Models.Image == "" {
		opts.Models.Image = "gpt-image-1"
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 2 * time.Minute
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry.Attempts = 1
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}

	p := &Pipeline{
		chat:       chat,
		editor:     editor,
		normalizer: n,
		store:      store,
		opts:       opts,
	}

	p.steps = []step{
		{stage: StageValidating, run: p.validate},
		{stage: StageResearching, run: p.research},
		{stage: StageComposingCopy, run: p.composeCopy},
		{stage: StageNormalizingImage, run: p.normalize},
		{stage: StageSynthesizingImage, run: p.synthesize},
		{stage: StagePersisting, run: p.persist},
	}

	return p
}

// run is the state threaded through the steps of one request.
type run struct {
	id  uuid.UUID
	req model.AdRequest

	research  string
	adCopy    string
	png       []byte
	size      string
	generated []byte
	path      string
	url       string
}

type step struct {
	stage Stage
	run   func(ctx context.Context, r *run) *StageError
}

// Generate runs every stage in order. It returns either a complete GeneratedAd
// or a *StageError naming the stage that failed; never both.
func (p *Pipeline) Generate(ctx context.Context, req model.AdRequest) (model.GeneratedAd, error) {
	r := &run{id: p.opts.NewID(), req: req}
	started := time.Now()
	current := StageValidating

	for _, s := range p.steps {
		p.transition(r.id, current, s.stage)
		current = s.stage

		stageStarted := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
		serr := s.run(stageCtx, r)
		cancel()

		if serr != nil {
			serr.Stage = s.stage
			p.transition(r.id, current, StageFailed)
			zlog.Logger.Err(serr).
				Str("request_id", r.id.String()).
				Str("stage", string(s.stage)).
				Dur("elapsed", time.Since(started)).
				Msg("ad generation failed")
			return model.GeneratedAd{}, serr
		}

		zlog.Logger.Info().
			Str("request_id", r.id.String()).
			Str("stage", string(s.stage)).
			Dur("took", time.Since(stageStarted)).
			Msg("stage completed")
	}

	p.transition(r.id, current, StageDone)
	zlog.Logger.Info().
		Str("request_id", r.id.String()).
		Str("image_url", r.url).
		Dur("elapsed", time.Since(started)).
		Msg("ad generated")

	return model.GeneratedAd{
		ID:        r.id,
		AdCopy:    r.adCopy,
		ImageURL:  r.url,
		ImagePath: r.path,
	}, nil
}

func (p *Pipeline) transition(id uuid.UUID, from, to Stage) {
	if p.opts.OnTransition != nil && from != to {
		p.opts.OnTransition(id, from, to)
	}
}

func (p *Pipeline) validate(_ context.Context, r *run) *StageError {
	var missing []string
	if strings.TrimSpace(r.req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.req.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(r.req.ImageBase64) == "" {
		missing = append(missing, "imageBase64")
	}
	if len(missing) > 0 {
		return fail(ErrValidation, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	if n := dataurl.DecodedLen(r.req.ImageBase64); n > p.opts.MaxImageBytes {
		return fail(ErrValidation, fmt.Errorf("image is %d bytes, limit is %d", n, p.opts.MaxImageBytes))
	}

	zlog.Logger.Info().
		Str("request_id", r.id.String()).
		Str("title", r.req.Title).
		Str("image", truncate(r.req.ImageBase64, 70)).
		Msg("ad generation request received")

	return nil
}

func (p *Pipeline) research(ctx context.Context, r *run) *StageError {
	req := openai.ChatRequest{
		Model: p.opts.Models.Research,
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: researchSystemPrompt},
			{Role: openai.RoleUser, Parts: []openai.ContentPart{
				openai.TextPart(researchUserText(r.req.Title, r.req.Description)),
				openai.ImagePart(r.req.ImageBase64, openai.DetailLow),
			}},
		},
		MaxTokens: researchMaxTokens,
	}

	text, serr := p.complete(ctx, req)
	if serr != nil {
		return serr
	}

	r.research = text
	return nil
}

func (p *Pipeline) composeCopy(ctx context.Context, r *run) *StageError {
	temperature := copyTemperature
	req := openai.ChatRequest{
		Model: p.opts.Models.Copy,
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: copySystemPrompt},
			{Role: openai.RoleUser, Content: copyUserText(r.req.Title, r.req.Description, r.research)},
		},
		MaxTokens:   copyMaxTokens,
		Temperature: &temperature,
	}

	text, serr := p.complete(ctx, req)
	if serr != nil {
		return serr
	}

	r.adCopy = text
	return nil
}

// complete runs a chat request with retry and requires non-blank text.
func (p *Pipeline) complete(ctx context.Context, req openai.ChatRequest) (string, *StageError) {
	var resp openai.ChatResponse
	err := p.withRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.chat.Chat(ctx, req)
		return err
	})
	if err != nil {
		return "", fail(ErrUpstream, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fail(ErrUpstreamEmptyResponse, fmt.Errorf("model %s returned no content", req.Model))
	}

	return text, nil
}

func (p *Pipeline) normalize(_ context.Context, r *run) *StageError {
	img, err := dataurl.Decode(r.req.ImageBase64)
	if err != nil {
		return fail(ErrInvalidImageFormat, err)
	}

	png, err := p.normalizer.Normalize(img)
	if err != nil {
		return fail(ErrImageConversion, err)
	}

	r.png = png
	r.size = processor.SizeFor(r.req.AspectRatio)

	zlog.Logger.Info().
		Str("request_id", r.id.String()).
		Str("mime_type", img.MimeType).
		Str("size", r.size).
		Str("aspect_ratio", string(r.req.AspectRatio)).
		Msg("image normalized")

	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, r *run) *StageError {
	req := openai.ImageEditRequest{
		Model:     p.opts.Models.Image,
		Prompt:    r.adCopy,
		Image:     r.png,
		ImageName: editImageName,
		ImageType: dataurl.MimePNG,
		N:         1,
		Size:      r.size,
		Quality:   editQuality,
	}

	var resp openai.ImageEditResponse
	err := p.withRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.editor.EditImage(ctx, req)
		return err
	})
	if err != nil {
		return fail(ErrUpstream, err)
	}

	b64 := resp.B64()
	if b64 == "" {
		zlog.Logger.Error().
			Str("request_id", r.id.String()).
			Interface("response", resp).
			Msg("image edit response has no b64_json")
		return fail(ErrUpstreamEmptyResponse, errors.New("image edit returned no b64_json data"))
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return fail(ErrUpstreamEmptyResponse, fmt.Errorf("decode b64_json: %w", err))
	}

	r.generated = data
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *run) *StageError {
	filename := fmt.Sprintf("ad-image-%s.png", r.id)

	path, err := p.store.Save(ctx, publicDir, filename, r.generated)
	if err != nil {
		return fail(ErrStorageWrite, err)
	}

	url, err := p.store.PublicURL(path)
	if err != nil {
		return fail(ErrStorageURLResolution, fmt.Errorf("object %s stored: %w", path, err))
	}
	if url == "" {
		return fail(ErrStorageURLResolution, fmt.Errorf("object %s stored but has no public url", path))
	}

	r.path = path
	r.url = url
	return nil
}

// withRetry retries fn on transient vendor failures using the configured strategy.
// Permanent failures end the loop immediately; cancellation ends it during a wait.
func (p *Pipeline) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0

	return backoff.Do(ctx, p.opts.Retry, openai.IsTransient, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && openai.IsTransient(err) {
			zlog.Logger.Warn().Err(err).Int("attempt", attempt).Msg("transient vendor error")
		}
		return err
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
