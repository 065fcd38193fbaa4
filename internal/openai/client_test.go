package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestChatSendsMultimodalMessage(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  summary text \n"}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})

	resp, err := c.Chat(context.Background(), ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "analyst"},
			{Role: RoleUser, Parts: []ContentPart{
				TextPart("Product Title: x"),
				ImagePart("data:image/png;base64,AAAA", DetailLow),
			}},
		},
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text() != "summary text" {
		t.Fatalf("expected trimmed text, got %q", resp.Text())
	}

	msgs := got["messages"].([]any)
	if _, ok := msgs[0].(map[string]any)["content"].(string); !ok {
		t.Fatalf("expected system content as string, got %#v", msgs[0])
	}
	parts, ok := msgs[1].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected two user parts, got %#v", msgs[1])
	}
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	if img["detail"] != "low" {
		t.Fatalf("expected low detail, got %v", img["detail"])
	}
	if got["max_tokens"].(float64) != 300 {
		t.Fatalf("expected max_tokens 300, got %v", got["max_tokens"])
	}
	if _, ok := got["temperature"]; ok {
		t.Fatal("temperature should be omitted when unset")
	}
}

func TestEditImageMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/edits" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}

		for k, want := range map[string]string{
			"model": "gpt-image-1", "prompt": "ad copy", "n": "1", "size": "1536x1024", "quality": "high",
		} {
			if got := r.FormValue(k); got != want {
				t.Errorf("field %s = %q, want %q", k, got, want)
			}
		}

		var files []*multipart.FileHeader
		for _, fhs := range r.MultipartForm.File {
			files = append(files, fhs...)
		}
		if len(files) != 1 {
			t.Errorf("expected one image file, got %d", len(files))
		} else {
			hdr := files[0]
			if hdr.Filename != "input_image.png" {
				t.Errorf("unexpected filename %q", hdr.Filename)
			}
			if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("unexpected part content type %q", ct)
			}
			f, err := hdr.Open()
			if err != nil {
				t.Errorf("open part: %v", err)
			} else {
				data, _ := io.ReadAll(f)
				f.Close()
				if string(data) != "png-bytes" {
					t.Errorf("unexpected image payload %q", data)
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1,"data":[{"b64_json":"aGVsbG8="}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})

	resp, err := c.EditImage(context.Background(), ImageEditRequest{
		Model:     "gpt-image-1",
		Prompt:    "ad copy",
		Image:     []byte("png-bytes"),
		ImageName: "input_image.png",
		ImageType: "image/png",
		N:         1,
		Size:      "1536x1024",
		Quality:   "high",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if resp.B64() != "aGVsbG8=" {
		t.Fatalf("unexpected b64 %q", resp.B64())
	}
}

func TestAPIErrorClassification(t *testing.T) {
	var status, calls atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit","code":null,"param":null}}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := c.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if !IsTransient(err) {
		t.Fatal("429 should be transient")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("client must not retry on its own, got %d calls", n)
	}

	status.Store(http.StatusServiceUnavailable)
	_, err = c.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !IsTransient(err) {
		t.Fatalf("503 should be transient, got %v", err)
	}

	status.Store(http.StatusBadRequest)
	_, err = c.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if IsTransient(err) {
		t.Fatal("400 should not be transient")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected exactly one request per call, got %d", n)
	}
}

func TestIsTransientContext(t *testing.T) {
	if IsTransient(context.Canceled) || IsTransient(context.DeadlineExceeded) || IsTransient(nil) {
		t.Fatal("context errors are not transient")
	}
}

func TestEmptyResponses(t *testing.T) {
	if (ChatResponse{}).Text() != "" {
		t.Fatal("expected empty text")
	}
	if (ImageEditResponse{}).B64() != "" {
		t.Fatal("expected empty b64")
	}
}
