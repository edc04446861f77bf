package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/timmy/nercompare/internal/compare"
	"github.com/timmy/nercompare/internal/export"
)

const (
	modeEntities   = "entities"
	modeCategories = "categories"
)

type options struct {
	file1     string
	file2     string
	output    string
	outputDir string
	mode      string
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs accepts the two input files anywhere among the flags.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("compare-json", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.output, "output", "", "Result file (.json or .xlsx)")
	fs.StringVar(&opts.outputDir, "output-dir", "", "Directory for the result, named after both inputs")
	fs.StringVar(&opts.mode, "mode", modeEntities, "Comparison mode: entities or categories")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: compare-json [flags] <file1.json> <file2.json>")
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return options{}, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 2 {
		return options{}, fmt.Errorf("expected two JSON files, got %d", len(positional))
	}
	if opts.mode != modeEntities && opts.mode != modeCategories {
		return options{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.output != "" && opts.outputDir != "" {
		return options{}, fmt.Errorf("--output and --output-dir are mutually exclusive")
	}
	opts.file1, opts.file2 = positional[0], positional[1]
	return opts, nil
}

func run(opts options, stdout io.Writer) error {
	doc1, err := os.ReadFile(opts.file1)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.file1, err)
	}
	doc2, err := os.ReadFile(opts.file2)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.file2, err)
	}

	outFile := opts.output
	if outFile == "" && opts.outputDir != "" {
		outFile = filepath.Join(opts.outputDir, export.PairName(opts.file1, opts.file2))
	}

	var result interface{}
	switch opts.mode {
	case modeCategories:
		res, err := compare.CompareDocuments(doc1, doc2)
		if err != nil {
			return err
		}
		if outFile != "" {
			if err := export.WriteCategoryResult(outFile, res); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
		}
		result = res
	default:
		res, err := compare.CompareEntityJSON(doc1, doc2)
		if err != nil {
			return err
		}
		if outFile != "" {
			if err := export.WriteResult(outFile, res); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
		}
		result = res
	}

	if outFile != "" {
		fmt.Fprintf(stdout, "Comparison results saved to: %s\n", outFile)
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Comparison successful. Results:\n%s\n", b)
	return nil
}
