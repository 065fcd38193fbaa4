// Package openai adapts the OpenAI Go SDK to the chat completions and image edit
// calls the ad pipeline makes. Retries are left to the caller.
package openai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	client sdk.Client
}

func New(opts Options) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &Client{client: sdk.NewClient(reqOpts...)}
}

// Chat calls POST /chat/completions.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: toMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResponse{}, wrapError(err)
	}

	out := ChatResponse{ID: completion.ID, Model: completion.Model}
	for _, choice := range completion.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Message: ChatMessage{
				Role:    string(choice.Message.Role),
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		})
	}

	return out, nil
}

func toMessages(msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, m := range msgs {
		switch {
		case m.Role == RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case m.Role == RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		case len(m.Parts) > 0:
			out = append(out, sdk.UserMessage(toParts(m.Parts)))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}

	return out
}

func toParts(parts []ContentPart) []sdk.ChatCompletionContentPartUnionParam {
	out := make([]sdk.ChatCompletionContentPartUnionParam, 0, len(parts))

	for _, p := range parts {
		if p.ImageURL != nil {
			out = append(out, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{
				URL:    p.ImageURL.URL,
				Detail: p.ImageURL.Detail,
			}))
			continue
		}
		out = append(out, sdk.TextContentPart(p.Text))
	}

	return out
}

// EditImage calls POST /images/edits with the image as a multipart file.
func (c *Client) EditImage(ctx context.Context, req ImageEditRequest) (ImageEditResponse, error) {
	name := req.ImageName
	if name == "" {
		name = "image.png"
	}
	contentType := req.ImageType
	if contentType == "" {
		contentType = "image/png"
	}

	params := sdk.ImageEditParams{
		Image: sdk.ImageEditParamsImageUnion{
			OfFile: sdk.File(bytes.NewReader(req.Image), name, contentType),
		},
		Prompt: req.Prompt,
		Model:  sdk.ImageModel(req.Model),
	}
	if req.N > 0 {
		params.N = sdk.Int(int64(req.N))
	}
	if req.Size != "" {
		params.Size = sdk.ImageEditParamsSize(req.Size)
	}
	if req.Quality != "" {
		params.Quality = sdk.ImageEditParamsQuality(req.Quality)
	}

	resp, err := c.client.Images.Edit(ctx, params)
	if err != nil {
		return ImageEditResponse{}, wrapError(err)
	}

	out := ImageEditResponse{Created: resp.Created}
	for _, img := range resp.Data {
		out.Data = append(out.Data, ImageData{
			B64JSON:       img.B64JSON,
			URL:           img.URL,
			RevisedPrompt: img.RevisedPrompt,
		})
	}

	return out, nil
}

// wrapError turns SDK status errors into *APIError and leaves the rest untouched.
func wrapError(err error) error {
	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		return &APIError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Message, Err: err}
	}
	return err
}

// IsTransient reports whether err is worth retrying: rate limiting, provider
// 5xx responses and network failures. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		return temporaryStatus(sdkErr.StatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
