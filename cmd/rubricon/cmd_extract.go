// Package main implements the rubricon CLI commands.
// This file contains rubric extraction commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rubricon/internal/accordion"
	"rubricon/internal/dom"
	"rubricon/internal/rubric"
	"rubricon/internal/scanner"
)

var (
	extractFile string
	extractJSON bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [url-substring]",
	Short: "Extract the rubric from a grading page and print it",
	Long: `Extract attaches to the running browser, finds the page whose URL
contains the given substring (default: the platform base URL), and prints
the extracted rubric without touching the grading service.

With --file, the page is read from a saved HTML document instead. Option
groups in a saved document can only be read if they were expanded when
the page was saved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	page, cleanup, err := resolvePage(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl := accordion.New(cfg.ExpandSettle(), cfg.CollapseSettle())
	model := scanner.New(ctrl).Scan(page)

	switch m := model.(type) {
	case rubric.Structured:
		logger.Info("Extracted rubric",
			zap.Int("items", len(m.Items)),
			zap.String("style", m.Style.String()))
		return printStructured(m)
	case rubric.Manual:
		fmt.Printf("Manual scoring page (score field: %s); no rubric items to extract\n", m.ScoreFieldRef)
		return nil
	default:
		return fmt.Errorf("no rubric found on page")
	}
}

// resolvePage returns the page to scan, either from a saved document or
// from the running browser.
func resolvePage(ctx context.Context, args []string) (dom.Page, func(), error) {
	if extractFile != "" {
		f, err := os.Open(extractFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", extractFile, err)
		}
		defer f.Close()
		page, err := dom.ParseReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", extractFile, err)
		}
		return page, func() {}, nil
	}

	urlSubstr := cfg.Platform.BaseURL
	if len(args) > 0 {
		urlSubstr = args[0]
	}
	page, browser, err := dom.Attach(ctx, cfg.Browser.ControlURL, urlSubstr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to attach to browser: %w", err)
	}
	logger.Info("Attached to grading page", zap.String("url", page.URL()))
	return page, func() { _ = browser.Close() }, nil
}

func printStructured(m rubric.Structured) error {
	if extractJSON {
		type jsonOption struct {
			Key         string  `json:"key"`
			Description string  `json:"description"`
			Points      float64 `json:"points"`
			Selected    bool    `json:"selected"`
		}
		type jsonItem struct {
			ID          string       `json:"id"`
			Description string       `json:"description"`
			Points      float64      `json:"points"`
			Type        string       `json:"type"`
			Selected    *bool        `json:"selected,omitempty"`
			Options     []jsonOption `json:"options,omitempty"`
		}
		out := make([]jsonItem, 0, len(m.Items))
		for _, it := range m.Items {
			ji := jsonItem{
				ID:          it.ID,
				Description: it.Description,
				Points:      it.Points,
				Type:        it.Type.String(),
				Selected:    it.Selected,
			}
			for _, opt := range it.Options.All() {
				ji.Options = append(ji.Options, jsonOption(opt))
			}
			out = append(out, ji)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Rubric style: %s (%d items)\n\n", m.Style, len(m.Items))
	for _, it := range m.Items {
		marker := " "
		if it.Selected != nil && *it.Selected {
			marker = "x"
		}
		fmt.Printf("[%s] %-6s %6.1f pts  %s\n", marker, it.ID, it.Points, it.Description)
		for _, opt := range it.Options.All() {
			optMarker := " "
			if opt.Selected {
				optMarker = "*"
			}
			fmt.Printf("      %s %s: %s (%.1f pts)\n", optMarker, opt.Key, opt.Description, opt.Points)
		}
	}
	return nil
}
