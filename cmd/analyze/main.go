package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"legislens/internal/analyses"
	"legislens/internal/bootstrap"
	"legislens/internal/extract"
	"legislens/internal/report"
	"legislens/internal/shared/config"
	"legislens/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()

	docPath := flag.String("file", "", "Path to contract file (pdf, docx or txt)")
	format := flag.String("format", "", "Declared format; detected from the extension when empty")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai or anthropic)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	fallback := flag.Bool("fallback", false, "Substitute the approximate result when the model output cannot be parsed")
	outPath := flag.String("out", "", "Write the report here instead of printing JSON (.xlsx or .csv)")
	timeout := flag.Duration("timeout", 3*time.Minute, "Overall time limit")
	verbose := flag.Bool("v", false, "Print structured logs to stderr")
	flag.Parse()

	if strings.TrimSpace(*docPath) == "" {
		exitErr("file path is required")
	}
	if *verbose {
		telemetry.SetOutput(os.Stderr)
	} else {
		telemetry.SetOutput(io.Discard)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLMModel = *model
	if err := cfg.Validate(); err != nil {
		exitErr(err.Error())
	}

	data, err := os.ReadFile(*docPath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}
	fileName := filepath.Base(*docPath)

	docFormat, err := resolveFormat(*format, fileName, data)
	if err != nil {
		exitErr(err.Error())
	}

	client, err := bootstrap.BuildLLM(cfg)
	if err != nil {
		exitErr(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	doc := extract.Document{Data: data, Format: docFormat, FileName: fileName}
	result, err := analyses.NewPipeline(analyses.NewRetryingClient(client, analyses.RetryPolicy{
		MaxAttempts: cfg.LLMRetryMaxAttempts,
	})).Analyze(ctx, doc)
	if err != nil && *fallback && errors.Is(err, analyses.ErrUnparseableResponse) {
		result, err = analyses.DegradedResult(), nil
	}
	if err != nil {
		code, _ := analyses.Classify(err)
		exitErr(fmt.Sprintf("%s: %v", code, err))
	}

	if *outPath != "" {
		if err := writeReport(*outPath, fileName, result); err != nil {
			exitErr(fmt.Sprintf("write report: %v", err))
		}
		return
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if _, err := os.Stdout.Write(append(out, '\n')); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func resolveFormat(declared, fileName string, data []byte) (extract.Format, error) {
	if strings.TrimSpace(declared) != "" {
		return extract.ParseFormat(declared)
	}
	return extract.DetectFormat(fileName, "", data)
}

func writeReport(path, docName string, result analyses.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = report.WriteCSV(f, result)
	default:
		err = report.WriteXLSX(f, result, report.Meta{DocumentName: docName, GeneratedAt: time.Now()})
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
