// Package pipeline orchestrates test generation for source files: analyze
// structure, prompt the generation collaborator once per function, recover
// structure from each response, and assemble one test file per source file.
//
// Processing is synchronous and in document order; no state crosses file
// boundaries. One function's failure never aborts its siblings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"unitgen/internal/analyzer"
	"unitgen/internal/assembly"
	"unitgen/internal/cache"
	"unitgen/internal/generation"
	"unitgen/internal/logging"
	"unitgen/internal/prompt"
)

// Reporter is the caller-supplied diagnostics channel. Pipelines report
// per-function progress and failures here; they never print directly.
type Reporter interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopReporter struct{}

func (nopReporter) Info(string, ...interface{})  {}
func (nopReporter) Warn(string, ...interface{})  {}
func (nopReporter) Error(string, ...interface{}) {}

// NopReporter discards all diagnostics.
func NopReporter() Reporter { return nopReporter{} }

// Options configures a Pipeline. Client and Prompts are required unless
// DryRun is set; everything else has usable zero values.
type Options struct {
	Client     generation.Client
	Prompts    *prompt.Builder
	Classifier *assembly.Classifier
	Cache      *cache.Store // optional
	Reporter   Reporter     // optional
	Model      string       // cache partition key

	OutputDir       string
	MirrorStructure bool
	BasePath        string // source root used for mirroring
	AppendExisting  bool   // merge into existing test files instead of overwriting
	DryRun          bool
}

// Pipeline generates test files for Python sources.
type Pipeline struct {
	analyzer   *analyzer.PythonAnalyzer
	normalizer *assembly.Normalizer
	assembler  *assembly.Assembler
	opts       Options
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Client == nil && !opts.DryRun {
		return nil, fmt.Errorf("generation client is required")
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.NewBuilder("")
	}
	if opts.Classifier == nil {
		opts.Classifier = assembly.DefaultClassifier()
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "ut_output"
	}

	return &Pipeline{
		analyzer:   analyzer.NewPythonAnalyzer(),
		normalizer: assembly.NewNormalizer(),
		assembler:  assembly.NewAssembler(opts.Classifier),
		opts:       opts,
	}, nil
}

// FileResult summarizes one source file's processing.
type FileResult struct {
	RunID          string
	SourcePath     string
	TestFilePath   string // empty when nothing was written
	ImportPath     string
	FunctionsFound int
	BlocksKept     int
	Skipped        []string // functions that yielded no complete block
}

// ProcessPath processes a single file or every Python file under a
// directory. Structural failures skip the offending file and continue.
func (p *Pipeline) ProcessPath(ctx context.Context, path string) ([]*FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}

	if !info.IsDir() {
		result, err := p.ProcessFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return []*FileResult{result}, nil
	}

	var results []*FileResult
	walkErr := filepath.WalkDir(path, func(entry string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSourceFile(entry) {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := p.ProcessFile(ctx, entry)
		if err != nil {
			var structuralErr *analyzer.StructuralError
			if errors.As(err, &structuralErr) {
				p.opts.Reporter.Warn("skipping %s: %v", entry, err)
				return nil
			}
			return err
		}
		results = append(results, result)
		return nil
	})
	if walkErr != nil {
		return results, walkErr
	}
	return results, nil
}

// ProcessFile generates one assembled test file for a single source file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "ProcessFile "+filepath.Base(path))
	defer timer.Stop()

	result := &FileResult{
		RunID:      uuid.NewString(),
		SourcePath: path,
	}

	analysis, err := p.analyzer.AnalyzeFile(path)
	if err != nil {
		return nil, err
	}

	result.FunctionsFound = len(analysis.Functions)
	if len(analysis.Functions) == 0 {
		p.opts.Reporter.Info("no functions found in %s", filepath.Base(path))
		return result, nil
	}

	moduleName := stem(path)
	importPath := ImportPath(path)
	result.ImportPath = importPath
	importsCode := strings.Join(analysis.Imports, "\n")

	var allImports []string
	var allBlocks []assembly.Block

	for i, fn := range analysis.Functions {
		p.opts.Reporter.Info("processing function %d/%d: %s", i+1, len(analysis.Functions), fn.Name)

		if p.opts.DryRun {
			continue
		}

		promptText, err := p.buildPrompt(importsCode, fn)
		if err != nil {
			p.opts.Reporter.Warn("prompt for %s failed: %v", fn.Name, err)
			result.Skipped = append(result.Skipped, fn.Name)
			continue
		}

		raw, err := p.generate(ctx, promptText)
		if err != nil {
			// Generation failure is isolated to this function.
			p.opts.Reporter.Warn("generation for %s failed: %v", fn.Name, err)
			result.Skipped = append(result.Skipped, fn.Name)
			continue
		}

		normalized := p.normalizer.Normalize(raw, importPath, fn.Name)
		scan := assembly.Scan(normalized)
		if len(scan.Blocks) == 0 {
			// Recovery ambiguity: nothing usable, observable as zero blocks.
			p.opts.Reporter.Warn("no valid tests recovered for %s", fn.Name)
			result.Skipped = append(result.Skipped, fn.Name)
			continue
		}

		allImports = append(allImports, scan.Imports...)
		allBlocks = append(allBlocks, scan.Blocks...)
		p.opts.Reporter.Info("recovered %d test(s) for %s", len(scan.Blocks), fn.Name)
	}

	result.BlocksKept = len(allBlocks)
	if p.opts.DryRun || len(allBlocks) == 0 {
		return result, nil
	}

	body := p.assembler.Combine(allImports, allBlocks, moduleName, importPath)

	testPath, err := p.outputPath(path)
	if err != nil {
		return nil, err
	}

	if p.opts.AppendExisting {
		if existing, err := os.ReadFile(testPath); err == nil {
			body = p.assembler.Append(string(existing), body, moduleName, importPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(testPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(testPath, []byte(body), 0644); err != nil {
		return nil, fmt.Errorf("failed to write test file: %w", err)
	}

	result.TestFilePath = testPath
	p.opts.Reporter.Info("test file created: %s", testPath)
	return result, nil
}

// buildPrompt selects the class-method or standalone template.
func (p *Pipeline) buildPrompt(importsCode string, fn analyzer.FunctionDescriptor) (string, error) {
	if fn.IsMethod() {
		return p.opts.Prompts.ClassMethod(importsCode, fn.Name, fn.ClassCode)
	}
	return p.opts.Prompts.Standalone(importsCode, fn.Code)
}

// generate calls the collaborator, consulting the cache first.
func (p *Pipeline) generate(ctx context.Context, promptText string) (string, error) {
	if p.opts.Cache != nil {
		if cached, hit, err := p.opts.Cache.Get(p.opts.Model, promptText); err == nil && hit {
			return cached, nil
		}
	}

	raw, err := p.opts.Client.Complete(ctx, promptText)
	if err != nil {
		return "", err
	}

	if p.opts.Cache != nil {
		if err := p.opts.Cache.Put(p.opts.Model, promptText, raw); err != nil {
			logging.Get(logging.CategoryCache).Warn("cache store failed: %v", err)
		}
	}
	return raw, nil
}

// outputPath computes the deterministic test file location for a source.
func (p *Pipeline) outputPath(sourcePath string) (string, error) {
	testDir := p.opts.OutputDir
	if p.opts.MirrorStructure && p.opts.BasePath != "" {
		rel, err := filepath.Rel(p.opts.BasePath, filepath.Dir(sourcePath))
		if err != nil {
			return "", fmt.Errorf("cannot mirror %s under %s: %w", sourcePath, p.opts.BasePath, err)
		}
		if rel != "." {
			testDir = filepath.Join(testDir, rel)
		}
	}
	return filepath.Join(testDir, TestFileName(sourcePath)), nil
}

// TestFileName returns the deterministic output name for a source file:
// fixed prefix, source base name, fixed extension.
func TestFileName(sourcePath string) string {
	return "test_" + stem(sourcePath) + ".py"
}

// stem returns the file base name without extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isSourceFile reports whether a path is a Python source worth processing.
// Existing test files are never re-analyzed.
func isSourceFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".py") && !strings.HasSuffix(base, ".pyw") {
		return false
	}
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") {
		return false
	}
	return !strings.HasPrefix(base, ".")
}

// skipDir filters directories that never contain user sources.
func skipDir(name string) bool {
	switch name {
	case "__pycache__", "node_modules", "venv", ".venv", "env",
		"site-packages", ".git", ".tox", ".mypy_cache", ".pytest_cache":
		return true
	}
	return strings.HasPrefix(name, ".")
}
