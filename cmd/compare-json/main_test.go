package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "flags after files",
			args: []string{"a.json", "b.json", "--output", "out.json"},
			want: options{file1: "a.json", file2: "b.json", output: "out.json", mode: modeEntities},
		},
		{
			name: "interleaved",
			args: []string{"--mode", "categories", "a.json", "--output-dir", "res", "b.json"},
			want: options{file1: "a.json", file2: "b.json", outputDir: "res", mode: modeCategories},
		},
		{name: "one file", args: []string{"a.json"}, wantErr: true},
		{name: "three files", args: []string{"a.json", "b.json", "c.json"}, wantErr: true},
		{name: "bad mode", args: []string{"--mode", "fuzzy", "a.json", "b.json"}, wantErr: true},
		{name: "both outputs", args: []string{"--output", "x.json", "--output-dir", "d", "a.json", "b.json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEntitiesToOutputDir(t *testing.T) {
	dir := t.TempDir()
	f1 := writeFile(t, dir, "ner1.json", `{"entities":[{"entity_name":"DATE","entity_value":"2024-01-01","confidence":90}]}`)
	f2 := writeFile(t, dir, "ner2.json", `{"entities":[{"entity_name":"DATE","entity_value":"2024-01-01","confidence":80}]}`)
	outDir := filepath.Join(dir, "results")

	var stdout bytes.Buffer
	err := run(options{file1: f1, file2: f2, outputDir: outDir, mode: modeEntities}, &stdout)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := filepath.Join(outDir, "ner1_ner2_comparison.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected result file %s: %v", want, err)
	}
	out := stdout.String()
	if !strings.Contains(out, "Comparison results saved to: "+want) {
		t.Errorf("missing saved line in %q", out)
	}
	if !strings.Contains(out, "Comparison successful. Results:") || !strings.Contains(out, `"comparison": "match"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunCategoriesStdoutOnly(t *testing.T) {
	dir := t.TempDir()
	f1 := writeFile(t, dir, "a.json", `{"Fruits":["Apple","banana"]}`)
	f2 := writeFile(t, dir, "b.json", `{"Fruits":["apple"],"Veg":["Leek"]}`)

	var stdout bytes.Buffer
	if err := run(options{file1: f1, file2: f2, mode: modeCategories}, &stdout); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := stdout.String()
	if strings.Contains(out, "saved to") {
		t.Errorf("nothing should be saved: %q", out)
	}
	for _, want := range []string{`"Fruits"`, `"Veg"`, `"Leek": "omission"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %q", want, out)
		}
	}
}

func TestRunInvalidInput(t *testing.T) {
	dir := t.TempDir()
	f1 := writeFile(t, dir, "a.json", `[1, 2]`)
	f2 := writeFile(t, dir, "b.json", `{"entities":[]}`)

	if err := run(options{file1: f1, file2: f2, mode: modeEntities}, io.Discard); err == nil {
		t.Fatal("expected validation error")
	}
	if err := run(options{file1: filepath.Join(dir, "missing.json"), file2: f2, mode: modeEntities}, io.Discard); err == nil {
		t.Fatal("expected read error")
	}
}
