package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/document"
	"github.com/timmy/nercompare/internal/export"
	"github.com/timmy/nercompare/internal/jobs"
	"github.com/timmy/nercompare/internal/llm"
	"github.com/timmy/nercompare/internal/logger"
	"github.com/timmy/nercompare/internal/repository"
	"github.com/timmy/nercompare/internal/workflow"
)

type options struct {
	input        string
	vlmConfig    string
	nerConfig1   string
	nerConfig2   string
	reviewConfig string
	output       string
	outputPath   string
	tempDir      string
	configPath   string
	debug        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "Input file path or URL (image, PDF or text)")
	flag.StringVar(&opts.vlmConfig, "vlm-config", "", "VLM step configuration file")
	flag.StringVar(&opts.nerConfig1, "ner-config1", "", "First NER step configuration file")
	flag.StringVar(&opts.nerConfig2, "ner-config2", "", "Second NER step configuration file")
	flag.StringVar(&opts.reviewConfig, "review-config", "", "Review step configuration file (optional)")
	flag.StringVar(&opts.output, "output", "", "Output file for the comparison result (.json or .xlsx)")
	flag.StringVar(&opts.outputPath, "output-path", "", "Directory for the comparison result")
	flag.StringVar(&opts.tempDir, "temp-dir", "", "Directory for intermediate files")
	flag.StringVar(&opts.configPath, "config", "", "Application config file")
	flag.BoolVar(&opts.debug, "debug", false, "Print model responses and keep intermediate files")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := validate(opts); err != nil {
		return err
	}
	outFile, err := resolveOutput(opts)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if opts.debug {
		level = "debug"
	}
	appLogger := logger.New(&logger.Config{
		Level:       level,
		Format:      cfg.Log.Format,
		ServiceName: "nercompare-cli",
		File:        cfg.Log.File,
		FileOnly:    cfg.Log.FileOnly,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	steps, err := config.StepPaths{
		VLM:    opts.vlmConfig,
		NER1:   opts.nerConfig1,
		NER2:   opts.nerConfig2,
		Review: opts.reviewConfig,
	}.Load()
	if err != nil {
		return err
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	tempDir := cfg.Workflow.TempDir
	if opts.tempDir != "" {
		tempDir = opts.tempDir
	}
	client := llm.NewClient(llm.Options{Timeout: cfg.LLM.Timeout, ChatPath: cfg.LLM.ChatPath})
	runner := workflow.NewRunner(client, repository.NewGateway(db), workflow.Options{
		WorkflowName:  cfg.Workflow.Name,
		TempDir:       tempDir,
		KeepArtifacts: opts.debug || cfg.Workflow.KeepArtifacts,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := jobs.NewManager(runner, 1)
	jobID, err := runner.NewJob(ctx, opts.input)
	if err != nil {
		return err
	}
	handle, err := manager.Submit(workflow.Spec{JobID: jobID, Input: opts.input, Steps: steps})
	if err != nil {
		runner.Abort(ctx, jobID, err)
		return err
	}
	outcome, err := handle.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	appLogger.WithField("job_id", outcome.JobID).Infof("Job finished with status %s", outcome.Status)

	if opts.debug {
		printResponses(outcome)
	}
	if outcome.Failed() {
		return outcome.Err
	}

	if err := export.WriteResult(outFile, *outcome.Comparison); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Printf("Comparison results saved to: %s\n", outFile)
	if outcome.Reviewed {
		fmt.Printf("\nReview:\n%s\n", outcome.ReviewText)
	}
	return nil
}

// validate checks the arguments before any job is recorded.
func validate(opts options) error {
	if opts.input == "" {
		return fmt.Errorf("--input is required")
	}
	if !document.IsURL(opts.input) {
		if _, err := os.Stat(opts.input); err != nil {
			return fmt.Errorf("input file not found: %s", opts.input)
		}
	}

	required := []struct{ flag, path string }{
		{"--vlm-config", opts.vlmConfig},
		{"--ner-config1", opts.nerConfig1},
		{"--ner-config2", opts.nerConfig2},
	}
	for _, r := range required {
		if r.path == "" {
			return fmt.Errorf("%s is required", r.flag)
		}
	}
	for _, path := range []string{opts.vlmConfig, opts.nerConfig1, opts.nerConfig2, opts.reviewConfig} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if opts.output != "" && opts.outputPath != "" {
		return fmt.Errorf("--output and --output-path are mutually exclusive")
	}
	if opts.outputPath != "" && !isDir(opts.outputPath) {
		return fmt.Errorf("output path is not a directory: %s", opts.outputPath)
	}
	if opts.tempDir != "" && !isDir(opts.tempDir) {
		return fmt.Errorf("temp directory does not exist: %s", opts.tempDir)
	}
	return nil
}

// resolveOutput picks the result file and creates its parent directory
// when --output names one that does not exist yet.
func resolveOutput(opts options) (string, error) {
	switch {
	case opts.output != "":
		if dir := filepath.Dir(opts.output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		return opts.output, nil
	case opts.outputPath != "":
		return filepath.Join(opts.outputPath, export.ComparisonName(opts.input)), nil
	default:
		return export.ComparisonName(opts.input), nil
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func printResponses(outcome *workflow.Outcome) {
	orders := make([]int, 0, len(outcome.Responses))
	for order := range outcome.Responses {
		orders = append(orders, order)
	}
	sort.Ints(orders)
	for _, order := range orders {
		fmt.Fprintf(os.Stderr, "\n[task %d]\n%s\n", order, llm.FormatResponse(outcome.Responses[order], nil))
	}
}
