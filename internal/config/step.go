package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingKeys is wrapped by MissingKeysError.
var ErrMissingKeys = errors.New("missing required configuration parameters")

// MissingKeysError lists required step keys absent from a config file.
type MissingKeysError struct {
	Path string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("%s: missing required configuration parameters: %s", e.Path, strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Unwrap() error { return ErrMissingKeys }

var requiredStepKeys = []string{"API_KEY", "BASE_URL", "MODEL"}

var stepDefaults = map[string]string{
	"SYSTEM_PROMPT":   "You are a helpful assistant.",
	"USER_PROMPT":     "",
	"STREAM":          "false",
	"TEMPERATURE":     "0.7",
	"TOP_P":           "1.0",
	"RESPONSE_FORMAT": "text",
}

// DefaultProvider is sent when a step config sets no PROVIDER object.
var DefaultProvider = json.RawMessage(`{"data_collection":"deny"}`)

var validate = validator.New()

// StepConfig is the model configuration for one workflow step.
type StepConfig struct {
	Source string `json:"-"`

	APIKey         string          `json:"-" validate:"required"`
	BaseURL        string          `json:"base_url" validate:"required,url"`
	Model          string          `json:"model" validate:"required"`
	SystemPrompt   string          `json:"system_prompt"`
	UserPrompt     string          `json:"user_prompt"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature" validate:"gte=0,lte=2"`
	TopP           float64         `json:"top_p" validate:"gte=0,lte=1"`
	ResponseFormat ResponseFormat  `json:"response_format"`
	Provider       json.RawMessage `json:"provider,omitempty"`
}

// Name is the base name of the file the config came from.
func (c *StepConfig) Name() string {
	if c.Source == "" {
		return "inline"
	}
	return filepath.Base(c.Source)
}

// Clone returns a copy that can be edited without touching c.
func (c *StepConfig) Clone() *StepConfig {
	cp := *c
	if c.Provider != nil {
		cp.Provider = append(json.RawMessage(nil), c.Provider...)
	}
	return &cp
}

// LoadStepConfig reads a step config. YAML, JSON and TOML files are read
// through viper; any other extension uses the KEY=VALUE format.
func LoadStepConfig(path string) (*StepConfig, error) {
	var (
		values map[string]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		values, err = readStructured(path)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open step config: %w", err)
		}
		defer f.Close()
		values, err = ParseKeyValues(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read step config %s: %w", path, err)
	}
	return NewStepConfig(path, values)
}

// ParseKeyValues reads KEY=VALUE lines. A value ending in a backslash
// continues on the next line; continuation lines are joined with newlines.
// Blank lines and lines starting with '#' are skipped everywhere.
func ParseKeyValues(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)

	var (
		key   string
		parts []string
		open  bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}

		if !open {
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(k)
			parts = []string{strings.TrimRight(v, "\\")}
			open = true
		} else {
			parts = append(parts, strings.TrimRight(line, "\\"))
		}

		if !strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") {
			values[key] = strings.TrimSpace(strings.Join(parts, "\n"))
			open = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if open {
		values[key] = strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return values, nil
}

func readStructured(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for key, raw := range v.AllSettings() {
		name := strings.ToUpper(key)
		switch val := raw.(type) {
		case string:
			values[name] = val
		case map[string]interface{}, []interface{}:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", name, err)
			}
			values[name] = string(b)
		default:
			values[name] = fmt.Sprint(val)
		}
	}
	return values, nil
}

// NewStepConfig builds a validated StepConfig from raw key/value pairs.
func NewStepConfig(source string, values map[string]string) (*StepConfig, error) {
	var missing []string
	for _, k := range requiredStepKeys {
		if _, ok := values[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingKeysError{Path: source, Keys: missing}
	}

	get := func(k string) string {
		if v, ok := values[k]; ok {
			return v
		}
		return stepDefaults[k]
	}

	temperature, err := strconv.ParseFloat(strings.TrimSpace(get("TEMPERATURE")), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid TEMPERATURE %q", source, get("TEMPERATURE"))
	}
	topP, err := strconv.ParseFloat(strings.TrimSpace(get("TOP_P")), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid TOP_P %q", source, get("TOP_P"))
	}
	format, err := ParseResponseFormat(get("RESPONSE_FORMAT"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	provider := DefaultProvider
	if p := strings.TrimSpace(values["PROVIDER"]); strings.HasPrefix(p, "{") {
		if !json.Valid([]byte(p)) {
			return nil, fmt.Errorf("%s: PROVIDER is not valid JSON", source)
		}
		provider = json.RawMessage(p)
	}

	cfg := &StepConfig{
		Source:         source,
		APIKey:         values["API_KEY"],
		BaseURL:        values["BASE_URL"],
		Model:          values["MODEL"],
		SystemPrompt:   get("SYSTEM_PROMPT"),
		UserPrompt:     get("USER_PROMPT"),
		Stream:         strings.EqualFold(strings.TrimSpace(get("STREAM")), "true"),
		Temperature:    temperature,
		TopP:           topP,
		ResponseFormat: format,
		Provider:       provider,
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: invalid step config: %w", source, err)
	}
	return cfg, nil
}

// StepPaths names the config file of each workflow step. Review is optional.
type StepPaths struct {
	VLM    string
	NER1   string
	NER2   string
	Review string
}

// Missing returns the step config files that cannot be found. Unset
// required steps are reported by step name.
func (p StepPaths) Missing() []string {
	steps := []struct {
		name     string
		path     string
		optional bool
	}{
		{"vlm", p.VLM, false},
		{"ner1", p.NER1, false},
		{"ner2", p.NER2, false},
		{"review", p.Review, true},
	}

	var missing []string
	for _, s := range steps {
		if s.path == "" {
			if !s.optional {
				missing = append(missing, s.name+" (unset)")
			}
			continue
		}
		if _, err := os.Stat(s.path); err != nil {
			missing = append(missing, s.path)
		}
	}
	return missing
}

// StepSet holds the loaded configs for one workflow run.
type StepSet struct {
	VLM    *StepConfig
	NER1   *StepConfig
	NER2   *StepConfig
	Review *StepConfig
}

// Load reads every configured step file.
func (p StepPaths) Load() (StepSet, error) {
	var set StepSet
	var err error
	if set.VLM, err = LoadStepConfig(p.VLM); err != nil {
		return StepSet{}, err
	}
	if set.NER1, err = LoadStepConfig(p.NER1); err != nil {
		return StepSet{}, err
	}
	if set.NER2, err = LoadStepConfig(p.NER2); err != nil {
		return StepSet{}, err
	}
	if p.Review != "" {
		if set.Review, err = LoadStepConfig(p.Review); err != nil {
			return StepSet{}, err
		}
	}
	return set, nil
}
