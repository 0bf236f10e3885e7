package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unitgen/internal/assembly"
	"unitgen/internal/cache"
	"unitgen/internal/config"
	"unitgen/internal/generation"
	"unitgen/internal/pipeline"
	"unitgen/internal/prompt"
)

var (
	genOutput    string
	genRecursive bool
	genDryRun    bool
	genMirror    bool
	genFlat      bool
	genAppend    bool
	genModel     string
	genProvider  string
	genPromptDir string
	genNoCache   bool
)

// generateCmd produces test files for the given sources
var generateCmd = &cobra.Command{
	Use:   "generate [path...]",
	Short: "Generate pytest files for Python sources",
	Long: `Generates one test file per Python source file.

For a file, processes just that file. For a directory, processes every
.py file beneath it (skipping test files, virtualenvs and caches).
Each source file yields a test_<name>.py in the output directory.

Examples:
  unitgen generate mylib/calc.py
  unitgen generate mylib/ -o tests/ --mirror
  unitgen generate mylib/ --append`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory for test files (default: ut_output)")
	generateCmd.Flags().BoolVarP(&genRecursive, "recursive", "r", true, "Recurse into subdirectories")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Analyze sources without calling the LLM or writing files")
	generateCmd.Flags().BoolVar(&genMirror, "mirror", false, "Mirror the source directory structure under the output directory")
	generateCmd.Flags().BoolVar(&genFlat, "flat", false, "Place all test files directly in the output directory")
	generateCmd.Flags().BoolVar(&genAppend, "append", false, "Merge new tests into existing test files instead of overwriting")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Override the configured model")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "Override the configured provider (openai, anthropic, gemini)")
	generateCmd.Flags().StringVar(&genPromptDir, "prompt-dir", "", "Directory of prompt template overrides")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "Bypass the generation cache")
	generateCmd.MarkFlagsMutuallyExclusive("mirror", "flat")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg := loadConfig()
	applyGenerateFlags(cfg)

	p, closeFn, err := buildPipeline(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer closeFn()

	var written []string
	for _, path := range args {
		targets := []string{path}
		if !genRecursive {
			targets, err = topLevelSources(path)
			if err != nil {
				return err
			}
		}
		for _, target := range targets {
			results, err := p.ProcessPath(ctx, target)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.TestFilePath != "" {
					written = append(written, r.TestFilePath)
				}
			}
		}
	}

	if genDryRun {
		fmt.Println("\nDry run complete; no files written.")
		return nil
	}
	if len(written) == 0 {
		fmt.Println("\nNo test files were generated.")
		return nil
	}

	fmt.Printf("\nGenerated %d test file(s) in %s\n", len(written), cfg.Generator.OutputDir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Review the generated tests in %s\n", cfg.Generator.OutputDir)
	fmt.Println("  2. Run them: pytest " + cfg.Generator.OutputDir)
	fmt.Println("  3. Fix any imports that reference your project layout")
	return nil
}

// topLevelSources expands a directory to its immediate .py files when
// recursion is disabled; files pass through unchanged.
func topLevelSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".py" {
			continue
		}
		if strings.HasPrefix(name, "test_") || strings.HasPrefix(name, ".") {
			continue
		}
		files = append(files, filepath.Join(path, name))
	}
	return files, nil
}

// applyGenerateFlags maps command-line overrides onto the loaded config.
func applyGenerateFlags(cfg *config.Config) {
	if genOutput != "" {
		cfg.Generator.OutputDir = genOutput
	}
	if genModel != "" {
		cfg.LLM.Model = genModel
	}
	if genProvider != "" {
		cfg.LLM.Provider = genProvider
	}
	if genPromptDir != "" {
		cfg.Generator.PromptDir = genPromptDir
	}
	if genMirror {
		cfg.Generator.MirrorStructure = true
	}
	if genFlat {
		cfg.Generator.MirrorStructure = false
	}
	if genNoCache {
		cfg.Generator.CacheEnabled = false
	}
}

// buildPipeline assembles the pipeline from config. The returned func
// releases the cache handle.
func buildPipeline(ctx context.Context, cfg *config.Config, paths []string) (*pipeline.Pipeline, func(), error) {
	closeFn := func() {}

	var client generation.Client
	if !genDryRun {
		timeout, err := time.ParseDuration(cfg.LLM.Timeout)
		if err != nil {
			timeout = 0
		}
		client, err = generation.NewClient(ctx, generation.Settings{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	var store *cache.Store
	if cfg.Generator.CacheEnabled && !genDryRun {
		var err error
		store, err = cache.Open(cfg.Generator.CachePath)
		if err != nil {
			logger.Warn("generation cache unavailable", zap.Error(err))
		} else {
			closeFn = func() { store.Close() }
		}
	}

	basePath := ""
	if cfg.Generator.MirrorStructure && len(paths) > 0 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			basePath = paths[0]
		} else {
			basePath = filepath.Dir(paths[0])
		}
	}

	p, err := pipeline.New(pipeline.Options{
		Client:          client,
		Prompts:         prompt.NewBuilder(cfg.Generator.PromptDir),
		Classifier:      assembly.NewClassifier(cfg.Buckets.Standard, cfg.Buckets.ThirdParty),
		Cache:           store,
		Reporter:        consoleReporter{},
		Model:           cfg.LLM.Model,
		OutputDir:       cfg.Generator.OutputDir,
		MirrorStructure: cfg.Generator.MirrorStructure,
		BasePath:        basePath,
		AppendExisting:  genAppend,
		DryRun:          genDryRun,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

// consoleReporter prints pipeline progress for interactive runs.
type consoleReporter struct{}

func (consoleReporter) Info(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (consoleReporter) Warn(format string, args ...interface{}) {
	fmt.Printf("warning: "+format+"\n", args...)
}

func (consoleReporter) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
