// Package main implements the rubricon CLI commands.
// This file contains the grading session command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rubricon/internal/accordion"
	"rubricon/internal/apply"
	"rubricon/internal/backend"
	"rubricon/internal/dom"
	"rubricon/internal/grader"
	"rubricon/internal/scanner"
)

var (
	gradeDryRun     bool
	gradeBackendURL string
)

var gradeCmd = &cobra.Command{
	Use:   "grade [url-substring]",
	Short: "Grade the submission on the attached page",
	Long: `Grade runs the full pipeline against the grading page found in the
running browser: extract the rubric, fetch the submission's source files,
submit both to the grading service, and apply each streamed decision to
the page as it arrives.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGrade,
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	urlSubstr := cfg.Platform.BaseURL
	if len(args) > 0 {
		urlSubstr = args[0]
	}
	page, browser, err := dom.Attach(ctx, cfg.Browser.ControlURL, urlSubstr)
	if err != nil {
		return fmt.Errorf("failed to attach to browser: %w", err)
	}
	defer browser.Close()
	logger.Info("Attached to grading page", zap.String("url", page.URL()))

	backendURL := cfg.Backend.BaseURL
	if gradeBackendURL != "" {
		backendURL = gradeBackendURL
	}

	ctrl := accordion.New(cfg.ExpandSettle(), cfg.CollapseSettle())
	session := grader.NewSession(
		page,
		page.URL(),
		scanner.New(ctrl),
		apply.New(ctrl, cfg.ApplySettle()),
		backend.NewClient(backendURL, cfg.Backend.Token, cfg.BackendTimeout()),
		grader.NewPlatformSourceFetcher(cfg.Platform.BaseURL, cfg.PlatformTimeout()),
		grader.Options{
			TestFileCharCap: cfg.Sources.TestFileCharCap,
			DryRun:          gradeDryRun,
		},
	)

	result, err := session.Run(ctx)
	if result != nil {
		fmt.Printf("Submitted %d items, received %d decisions, applied %d\n",
			result.Items, result.Decisions, result.Applied)
	}
	if err != nil {
		return err
	}
	if !result.Completed {
		logger.Warn("Stream ended without a completion event")
	}
	return nil
}
