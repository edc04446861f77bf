package main

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, filepath.Join(dir, "scan.png"))
	vlm := touch(t, filepath.Join(dir, "vlm.env"))
	ner1 := touch(t, filepath.Join(dir, "ner1.env"))
	ner2 := touch(t, filepath.Join(dir, "ner2.env"))
	notDir := touch(t, filepath.Join(dir, "file.txt"))

	base := options{input: input, vlmConfig: vlm, nerConfig1: ner1, nerConfig2: ner2}
	with := func(f func(*options)) options {
		o := base
		f(&o)
		return o
	}

	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"valid", base, false},
		{"url input skips existence check", with(func(o *options) { o.input = "https://example.com/a.png" }), false},
		{"missing input", with(func(o *options) { o.input = filepath.Join(dir, "nope.png") }), true},
		{"no input", with(func(o *options) { o.input = "" }), true},
		{"missing ner config", with(func(o *options) { o.nerConfig2 = filepath.Join(dir, "nope.env") }), true},
		{"unset vlm config", with(func(o *options) { o.vlmConfig = "" }), true},
		{"missing review config", with(func(o *options) { o.reviewConfig = filepath.Join(dir, "nope.env") }), true},
		{"output path not a dir", with(func(o *options) { o.outputPath = notDir }), true},
		{"temp dir missing", with(func(o *options) { o.tempDir = filepath.Join(dir, "tmp") }), true},
		{"both outputs", with(func(o *options) { o.output = "a.json"; o.outputPath = dir }), true},
		{"output path dir", with(func(o *options) { o.outputPath = dir; o.tempDir = dir }), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveOutput(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveOutput(options{input: "docs/My Invoice.pdf", outputPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "My_Invoice_comparison.json"); got != want {
		t.Errorf("output-path: got %q, want %q", got, want)
	}

	got, err = resolveOutput(options{input: "https://example.com/x/scan.jpg?sig=1"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "scan_comparison.json" {
		t.Errorf("default: got %q", got)
	}

	nested := filepath.Join(dir, "a", "b", "result.xlsx")
	got, err = resolveOutput(options{input: "in.png", output: nested})
	if err != nil {
		t.Fatal(err)
	}
	if got != nested {
		t.Errorf("output: got %q", got)
	}
	if info, err := os.Stat(filepath.Dir(nested)); err != nil || !info.IsDir() {
		t.Errorf("parent directory not created: %v", err)
	}
}
