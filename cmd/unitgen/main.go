package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"unitgen/internal/config"
	"unitgen/internal/logging"
)

var (
	// Global flags
	verbose   bool
	apiKey    string
	workspace string

	// Logger
	logger *zap.Logger
)

const version = "0.3.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "unitgen",
	Short: "unitgen - AI-assisted unit test generation for Python",
	Long: `unitgen analyzes Python source files, asks an LLM to write unit
tests for each function, and assembles the responses into clean,
deduplicated pytest files.

The model output is never trusted as-is: every response is normalized,
re-parsed line by line, and only structurally complete test functions
survive into the final file.`,
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

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the unitgen version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("unitgen %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM API key (or set OPENAI_API_KEY / ANTHROPIC_API_KEY / GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the workspace config, falling back to defaults, and
// lets the --api-key flag win over everything.
func loadConfig() *config.Config {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}

	cfg, err := config.Load(config.ConfigPath(ws))
	if err != nil {
		logger.Debug("no workspace config, using defaults", zap.Error(err))
		cfg = config.DefaultConfig()
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
