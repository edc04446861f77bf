package llm

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/timmy/nercompare/internal/config"
)

// ErrNoChoices is returned by Response.Content when the reply has no choices.
var ErrNoChoices = errors.New("response contains no choices")

// ChatRequest is an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	Stream         bool                  `json:"stream"`
	Temperature    float64               `json:"temperature"`
	TopP           float64               `json:"top_p"`
	ResponseFormat config.ResponseFormat `json:"response_format"`
	Provider       json.RawMessage       `json:"provider,omitempty"`
}

type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string, or []ContentPart for multimodal user turns
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FilePart `json:"file,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// Response is the decoded chat completion reply. Raw keeps the body as
// received so it can be stored verbatim.
type Response struct {
	ID      string    `json:"id"`
	Model   string    `json:"model,omitempty"`
	Choices []Choice  `json:"choices"`
	Usage   *Usage    `json:"usage,omitempty"`
	Error   *APIError `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

type ResponseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is the error object some providers return with a 200 status.
type APIError struct {
	Message string      `json:"message"`
	Code    interface{} `json:"code,omitempty"`
}

// UnmarshalJSON accepts both {"error": "text"} and {"error": {...}}.
func (e *APIError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain APIError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = APIError(p)
	return nil
}

// Content returns the first choice's message content. String content is
// returned as-is; structured content is returned as compact JSON.
func (r *Response) Content() (string, error) {
	if len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	raw := bytes.TrimSpace(r.Choices[0].Message.Content)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Body returns the response as stored: the raw body when available.
func (r *Response) Body() json.RawMessage {
	if len(r.Raw) > 0 {
		return r.Raw
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}
