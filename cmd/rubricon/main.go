// Package main implements the rubricon CLI commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rubricon/internal/config"
	"rubricon/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	timeout    time.Duration
	controlURL string

	// Logger
	logger *zap.Logger

	// Loaded workspace configuration
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rubricon",
	Short: "rubricon - rubric extraction and grading assistant",
	Long: `rubricon attaches to a grading page in a running browser, extracts its
rubric into a canonical form, submits the rubric and the student's source
files to a grading service, and applies the streamed decisions back onto
the page.

Extraction handles the page's four rubric renderings (embedded props,
flat items, expandable option groups, and manual score entry) and reads
grouped options through the expand/read/collapse protocol.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadWorkspace(workspace)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws = "."
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("File logging unavailable", zap.Error(err))
		}
		if controlURL != "" {
			cfg.Browser.ControlURL = controlURL
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&controlURL, "control-url", "", "DevTools control URL of a running browser (overrides config)")

	// Grade flags
	gradeCmd.Flags().BoolVar(&gradeDryRun, "dry-run", false, "Submit and stream but apply nothing to the page")
	gradeCmd.Flags().StringVar(&gradeBackendURL, "backend-url", "", "Grading service base URL (overrides config)")

	// Extract flags
	extractCmd.Flags().StringVar(&extractFile, "file", "", "Read the page from a saved HTML file instead of a browser")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Emit the extracted rubric as JSON")

	rubricmapCmd.Flags().StringVar(&rubricmapLocate, "locate", "", "Print the question owning the given rubric item ID")

	// Cache subcommands
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// Add commands to root
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(rubricmapCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initCmd writes a default workspace configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration to the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".rubricon/config.yaml"
		if workspace != "" {
			path = workspace + "/.rubricon/config.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration already exists at %s", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}
