package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/timmy/nercompare/internal/compare"
	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/llm"
	"github.com/timmy/nercompare/internal/logger"
	"github.com/timmy/nercompare/internal/prompts"
)

// invalidContent replaces a NER payload whose content is not JSON. It has
// no entities list, so that side compares as empty.
var invalidContent = []byte(`{"error": "Invalid JSON content"}`)

// entityPayload extracts the entity document from a NER response. Content
// that does not decode is replaced with invalidContent.
func entityPayload(ctx context.Context, step string, resp *llm.Response, cfg *config.StepConfig) []byte {
	content, err := resp.Content()
	if err == nil && !json.Valid([]byte(content)) {
		err = errors.New("malformed JSON")
	}
	if err != nil {
		perr := &ParseError{Step: step, Err: err}
		logger.CtxWarn(ctx, "%v; content: %s", perr, truncate(content, 100))
		return invalidContent
	}

	var doc interface{}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	if dec.Decode(&doc) == nil {
		if verr := cfg.ResponseFormat.Validate(doc); verr != nil {
			logger.CtxWarn(ctx, "%s output does not match its json_schema: %v", step, verr)
		}
	}
	return []byte(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type mismatchEntry struct {
	EntityName  string `json:"entity_name"`
	EntityValue string `json:"entity_value"`
}

// mismatchJSON renders additions and omissions as a compact list of
// name/value pairs.
func mismatchJSON(mismatches []compare.ResultEntity) []byte {
	entries := make([]mismatchEntry, 0, len(mismatches))
	for _, m := range mismatches {
		entries = append(entries, mismatchEntry{EntityName: m.Name, EntityValue: m.Value})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(entries)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// InjectMismatches returns a copy of cfg whose prompts carry mismatches
// in place of the placeholder. Without a placeholder the list is appended
// to the user prompt and injected is false.
func InjectMismatches(cfg *config.StepConfig, mismatches []byte) (out *config.StepConfig, injected bool) {
	out = cfg.Clone()
	text := string(mismatches)

	if strings.Contains(out.SystemPrompt, prompts.MismatchPlaceholder) ||
		strings.Contains(out.UserPrompt, prompts.MismatchPlaceholder) {
		out.SystemPrompt = strings.ReplaceAll(out.SystemPrompt, prompts.MismatchPlaceholder, text)
		out.UserPrompt = strings.ReplaceAll(out.UserPrompt, prompts.MismatchPlaceholder, text)
		return out, true
	}

	appendix := prompts.MismatchAppendixHeader + "\n" + text
	if out.UserPrompt == "" {
		out.UserPrompt = appendix
	} else {
		out.UserPrompt += "\n\n" + appendix
	}
	return out, false
}
