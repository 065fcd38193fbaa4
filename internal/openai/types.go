package openai

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DetailLow = "low"
)

// ChatRequest is a chat completions request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Message holds either plain text Content or multimodal Parts.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Text     string
	ImageURL *ImageURL
}

type ImageURL struct {
	URL    string
	Detail string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Text: text}
}

// ImagePart builds an inline image content part from a data URL.
func ImagePart(url, detail string) ContentPart {
	return ContentPart{ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// ChatResponse is the subset of a chat completions response the service reads.
type ChatResponse struct {
	ID      string
	Model   string
	Choices []ChatChoice
}

type ChatChoice struct {
	Message      ChatMessage
	FinishReason string
}

type ChatMessage struct {
	Role    string
	Content string
}

// Text returns the trimmed content of the first choice, or "".
func (r ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// ImageEditRequest is sent as multipart form data.
type ImageEditRequest struct {
	Model     string
	Prompt    string
	Image     []byte
	ImageName string
	ImageType string
	N         int
	Size      string
	Quality   string
}

// ImageEditResponse carries base64 encoded images.
type ImageEditResponse struct {
	Created int64
	Data    []ImageData
}

type ImageData struct {
	B64JSON       string
	URL           string
	RevisedPrompt string
}

// B64 returns the first image payload, or "".
func (r ImageEditResponse) B64() string {
	if len(r.Data) == 0 {
		return ""
	}
	return r.Data[0].B64JSON
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai API %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("openai API %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return temporaryStatus(e.StatusCode)
}

func temporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
