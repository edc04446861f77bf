package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseKeyValues(t *testing.T) {
	input := strings.Join([]string{
		"# model settings",
		"API_KEY = secret",
		"",
		"USER_PROMPT=Extract entities\\",
		"as JSON\\",
		"please",
		"MODEL=openai/gpt-4o",
		"EQUALS=a=b",
	}, "\n")

	values, err := ParseKeyValues(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseKeyValues() error = %v", err)
	}

	testCases := []struct {
		key  string
		want string
	}{
		{"API_KEY", "secret"},
		{"USER_PROMPT", "Extract entities\nas JSON\nplease"},
		{"MODEL", "openai/gpt-4o"},
		{"EQUALS", "a=b"},
	}
	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if got := values[tc.key]; got != tc.want {
				t.Errorf("values[%s] = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestLoadStepConfigDefaults(t *testing.T) {
	path := writeFile(t, "vlm.ini", "API_KEY=k\nBASE_URL=https://openrouter.ai\nMODEL=m\n")

	cfg, err := LoadStepConfig(path)
	if err != nil {
		t.Fatalf("LoadStepConfig() error = %v", err)
	}
	if cfg.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}
	if cfg.UserPrompt != "" {
		t.Errorf("UserPrompt = %q, want empty", cfg.UserPrompt)
	}
	if cfg.Stream {
		t.Error("Stream = true, want false")
	}
	if cfg.Temperature != 0.7 || cfg.TopP != 1.0 {
		t.Errorf("Temperature/TopP = %v/%v, want 0.7/1.0", cfg.Temperature, cfg.TopP)
	}
	if cfg.ResponseFormat.Type != FormatText {
		t.Errorf("ResponseFormat.Type = %q, want text", cfg.ResponseFormat.Type)
	}
	if string(cfg.Provider) != string(DefaultProvider) {
		t.Errorf("Provider = %s, want %s", cfg.Provider, DefaultProvider)
	}
	if cfg.Name() != "vlm.ini" {
		t.Errorf("Name() = %q", cfg.Name())
	}
}

func TestLoadStepConfigMissingKeys(t *testing.T) {
	path := writeFile(t, "ner.ini", "MODEL=m\n")

	_, err := LoadStepConfig(path)
	if !errors.Is(err, ErrMissingKeys) {
		t.Fatalf("error = %v, want ErrMissingKeys", err)
	}
	var mk *MissingKeysError
	if !errors.As(err, &mk) {
		t.Fatalf("error is not a MissingKeysError: %v", err)
	}
	if strings.Join(mk.Keys, ",") != "API_KEY,BASE_URL" {
		t.Errorf("Keys = %v", mk.Keys)
	}
}

func TestLoadStepConfigRejectsOutOfRange(t *testing.T) {
	path := writeFile(t, "ner.ini", "API_KEY=k\nBASE_URL=https://x.example\nMODEL=m\nTEMPERATURE=3.5\n")

	if _, err := LoadStepConfig(path); err == nil {
		t.Fatal("expected validation error for TEMPERATURE=3.5")
	}
}

func TestLoadStepConfigYAML(t *testing.T) {
	path := writeFile(t, "ner.yaml", `
api_key: k
base_url: https://openrouter.ai
model: mistral/small
temperature: 0.2
stream: true
provider:
  order: ["mistral"]
response_format:
  type: json_schema
  json_schema:
    name: entities
    schema:
      type: object
      required: [entities]
      properties:
        entities:
          type: array
`)

	cfg, err := LoadStepConfig(path)
	if err != nil {
		t.Fatalf("LoadStepConfig() error = %v", err)
	}
	if cfg.Model != "mistral/small" || cfg.Temperature != 0.2 || !cfg.Stream {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ResponseFormat.Type != FormatJSONSchema {
		t.Fatalf("ResponseFormat.Type = %q", cfg.ResponseFormat.Type)
	}
	if err := cfg.ResponseFormat.Validate(map[string]interface{}{"entities": []interface{}{}}); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}
	if err := cfg.ResponseFormat.Validate(map[string]interface{}{"error": "x"}); err == nil {
		t.Error("Validate(missing entities) returned nil")
	}
	if !strings.Contains(string(cfg.Provider), "mistral") {
		t.Errorf("Provider = %s", cfg.Provider)
	}
}

func TestParseResponseFormat(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    ResponseFormatType
		wantErr bool
	}{
		{name: "empty", raw: "", want: FormatText},
		{name: "plain text", raw: "text", want: FormatText},
		{name: "plain json_object", raw: "json_object", want: FormatJSONObject},
		{name: "object", raw: `{"type":"json_object"}`, want: FormatJSONObject},
		{name: "schema without body", raw: "json_schema", wantErr: true},
		{name: "unknown", raw: "xml", wantErr: true},
		{name: "broken json", raw: `{"type":`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseResponseFormat(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", f)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponseFormat() error = %v", err)
			}
			if f.Type != tc.want {
				t.Errorf("Type = %q, want %q", f.Type, tc.want)
			}
		})
	}
}

func TestResponseFormatMarshal(t *testing.T) {
	f, err := ParseResponseFormat("json_object")
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"json_object"}` {
		t.Errorf("MarshalJSON() = %s", b)
	}
}

func TestStepPathsMissing(t *testing.T) {
	existing := writeFile(t, "vlm.ini", "API_KEY=k\n")
	paths := StepPaths{VLM: existing, NER1: filepath.Join(t.TempDir(), "nope.ini")}

	missing := paths.Missing()
	if len(missing) != 2 {
		t.Fatalf("Missing() = %v, want 2 entries", missing)
	}
	if !strings.HasSuffix(missing[0], "nope.ini") || missing[1] != "ner2 (unset)" {
		t.Errorf("Missing() = %v", missing)
	}
}
