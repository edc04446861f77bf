package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/document"
	"github.com/timmy/nercompare/internal/logger"
	"github.com/timmy/nercompare/internal/prompts"
)

// DefaultChatPath is appended to a step's BASE_URL.
const DefaultChatPath = "/api/v1/chat/completions"

// Input is what a step sends to the model: a document reference (local
// path or URL) or literal text.
type Input struct {
	Ref  string
	Text string
}

// FileInput references a local file or URL.
func FileInput(ref string) Input { return Input{Ref: ref} }

// TextInput carries literal text.
func TextInput(text string) Input { return Input{Text: text} }

func (in Input) String() string {
	if in.Ref != "" {
		return in.Ref
	}
	return "<text>"
}

// Client calls an OpenRouter-compatible chat completions endpoint.
type Client struct {
	http     *resty.Client
	loader   *document.Loader
	chatPath string
}

// Options configures a Client.
type Options struct {
	Timeout  time.Duration
	ChatPath string
}

// NewClient creates a model client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ChatPath == "" {
		opts.ChatPath = DefaultChatPath
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(opts.Timeout)

	return &Client{
		http:     client,
		loader:   document.NewLoader(opts.Timeout),
		chatPath: opts.ChatPath,
	}
}

// Endpoint returns the chat completions URL for baseURL.
func (c *Client) Endpoint(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(c.chatPath, "/")
}

// Execute sends in to the model described by cfg. Call failures are
// returned as *ExternalCallError; input problems as plain errors.
func (c *Client) Execute(ctx context.Context, in Input, cfg *config.StepConfig) (*Response, error) {
	messages, err := c.BuildMessages(ctx, in, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Stream {
		logger.CtxWarn(ctx, "Streaming requested by %s; sending a non-streaming request", cfg.Name())
	}
	req := ChatRequest{
		Model:          cfg.Model,
		Messages:       messages,
		Stream:         false,
		Temperature:    cfg.Temperature,
		TopP:           cfg.TopP,
		ResponseFormat: cfg.ResponseFormat,
		Provider:       cfg.Provider,
	}

	start := time.Now()
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIKey).
		SetBody(req).
		Post(c.Endpoint(cfg.BaseURL))
	if err != nil {
		return nil, callFailed(err)
	}

	body := httpResp.Body()
	var resp Response
	decodeErr := json.Unmarshal(body, &resp)

	if httpResp.IsError() {
		detail := strings.TrimSpace(string(body))
		if decodeErr == nil && resp.Error != nil && resp.Error.Message != "" {
			detail = resp.Error.Message
		}
		return nil, httpFailed(httpResp.StatusCode(), detail)
	}
	if decodeErr != nil {
		return nil, &ExternalCallError{
			StatusCode: httpResp.StatusCode(),
			Message:    fmt.Sprintf("invalid response body: %v", decodeErr),
			Err:        decodeErr,
		}
	}
	if resp.Error != nil {
		return nil, &ExternalCallError{StatusCode: httpResp.StatusCode(), Message: resp.Error.Message}
	}
	resp.Raw = append(json.RawMessage(nil), body...)

	logger.Since(start).With(logger.Fields{
		logger.FieldModel: cfg.Model,
		"response_id":     resp.ID,
	}).Debug(ctx, "Model call completed")

	return &resp, nil
}

// BuildMessages renders the system and user turns for in.
func (c *Client) BuildMessages(ctx context.Context, in Input, cfg *config.StepConfig) ([]Message, error) {
	system := Message{Role: "system", Content: cfg.SystemPrompt}

	if in.Ref == "" {
		return []Message{system, {Role: "user", Content: withPrompt(cfg.UserPrompt, in.Text)}}, nil
	}

	src := document.Inspect(in.Ref)
	switch src.Kind {
	case document.KindImage:
		url := src.Ref
		if !src.Remote {
			data, err := c.loader.Read(ctx, src)
			if err != nil {
				return nil, err
			}
			url = document.DataURL(document.ImageMIMEType(src, data), data)
		}
		return []Message{system, {Role: "user", Content: []ContentPart{
			{Type: "text", Text: orDefault(cfg.UserPrompt, prompts.ImageUserPrompt)},
			{Type: "image_url", ImageURL: &ImageURL{URL: url}},
		}}}, nil

	case document.KindPDF:
		fileData := src.Ref
		if !src.Remote {
			data, err := c.loader.Read(ctx, src)
			if err != nil {
				return nil, err
			}
			if _, err := document.PageCount(data); err != nil {
				return nil, err
			}
			fileData = document.DataURL("application/pdf", data)
		}
		return []Message{system, {Role: "user", Content: []ContentPart{
			{Type: "text", Text: orDefault(cfg.UserPrompt, prompts.PDFUserPrompt)},
			{Type: "file", File: &FilePart{Filename: filepath.Base(src.Ref), FileData: fileData}},
		}}}, nil

	default:
		var (
			data []byte
			err  error
		)
		if src.Remote {
			data, err = c.loader.Read(ctx, src)
		} else {
			data, err = os.ReadFile(src.Ref)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", src.Ref, err)
		}
		return []Message{system, {Role: "user", Content: withPrompt(cfg.UserPrompt, string(data))}}, nil
	}
}

func withPrompt(prompt, text string) string {
	if prompt == "" {
		return text
	}
	return prompt + "\n\n" + text
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
