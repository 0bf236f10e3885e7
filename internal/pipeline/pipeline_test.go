package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns canned completions keyed by a substring of the prompt.
type stubClient struct {
	responses map[string]string
	fallback  string
	err       error
	calls     int
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	for key, response := range s.responses {
		if strings.Contains(prompt, key) {
			return response, nil
		}
	}
	return s.fallback, nil
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const calcSource = `def add(a, b):
    return a + b

def sub(a, b):
    return a - b
`

func newTestPipeline(t *testing.T, client *stubClient, outputDir string) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Client:    client,
		OutputDir: outputDir,
	})
	require.NoError(t, err)
	return p
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "calc.py", calcSource)
	outDir := filepath.Join(dir, "out")

	client := &stubClient{
		responses: map[string]string{
			"def add": "```python\nfrom calc import add\n\ndef test_add():\n    assert add(1, 2) == 3\n```",
			"def sub": "from calc import sub\n\ndef test_sub():\n    assert sub(3, 1) == 2",
		},
	}

	p := newTestPipeline(t, client, outDir)
	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.FunctionsFound)
	assert.Equal(t, 2, result.BlocksKept)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, filepath.Join(outDir, "test_calc.py"), result.TestFilePath)

	content, err := os.ReadFile(result.TestFilePath)
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, `"""Tests for calc module."""`))
	assert.Contains(t, text, "import pytest")
	assert.Contains(t, text, "from calc import add")
	assert.Contains(t, text, "from calc import sub")
	assert.Contains(t, text, "def test_add():")
	assert.Contains(t, text, "def test_sub():")
	assert.NotContains(t, text, "```")
}

func TestProcessFile_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "calc.py", calcSource)

	// One function generates fine, the other returns garbage with no
	// recoverable test block.
	client := &stubClient{
		responses: map[string]string{
			"def add": "def test_add():\n    assert add(1, 2) == 3",
			"def sub": "Sorry, I cannot write tests for this function.",
		},
	}

	p := newTestPipeline(t, client, filepath.Join(dir, "out"))
	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 1, result.BlocksKept)
	assert.Equal(t, []string{"sub"}, result.Skipped)

	content, err := os.ReadFile(result.TestFilePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "def test_add():")
}

func TestProcessFile_AllFunctionsFail(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "calc.py", calcSource)

	client := &stubClient{err: errors.New("upstream down")}

	p := newTestPipeline(t, client, filepath.Join(dir, "out"))
	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 0, result.BlocksKept)
	assert.Empty(t, result.TestFilePath)
	assert.Len(t, result.Skipped, 2)
}

func TestProcessFile_NoFunctions(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "constants.py", "MAX = 10\nMIN = 1\n")

	client := &stubClient{}
	p := newTestPipeline(t, client, filepath.Join(dir, "out"))

	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 0, result.FunctionsFound)
	assert.Empty(t, result.TestFilePath)
	assert.Equal(t, 0, client.calls)
}

func TestProcessFile_DryRun(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "calc.py", calcSource)

	client := &stubClient{}
	p, err := New(Options{
		Client:    client,
		OutputDir: filepath.Join(dir, "out"),
		DryRun:    true,
	})
	require.NoError(t, err)

	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FunctionsFound)
	assert.Empty(t, result.TestFilePath)
	assert.Equal(t, 0, client.calls)
}

func TestProcessFile_AppendMode(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "calc.py", calcSource)
	outDir := filepath.Join(dir, "out")

	client := &stubClient{
		responses: map[string]string{
			"def add": "def test_add():\n    assert add(1, 2) == 3",
			"def sub": "def test_sub():\n    assert sub(3, 1) == 2",
		},
	}

	p, err := New(Options{
		Client:         client,
		OutputDir:      outDir,
		AppendExisting: true,
	})
	require.NoError(t, err)

	first, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)
	firstContent, err := os.ReadFile(first.TestFilePath)
	require.NoError(t, err)

	// Second run regenerates the same tests; the file must not change.
	second, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)
	secondContent, err := os.ReadFile(second.TestFilePath)
	require.NoError(t, err)

	assert.Equal(t, string(firstContent), string(secondContent))
	assert.Equal(t, 1, strings.Count(string(secondContent), "def test_add():"))
}

func TestProcessFile_StructuralError(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "broken.py", "def broken(\n    return 1\n")

	p := newTestPipeline(t, &stubClient{}, filepath.Join(dir, "out"))
	_, err := p.ProcessFile(context.Background(), source)
	assert.Error(t, err)
}

func TestProcessPath_Directory(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "__pycache__"), 0755))

	writeSource(t, srcDir, "a.py", "def f():\n    return 1\n")
	writeSource(t, srcDir, "b.py", "def g():\n    return 2\n")
	writeSource(t, srcDir, "test_a.py", "def test_f():\n    pass\n")
	writeSource(t, filepath.Join(srcDir, "__pycache__"), "a.py", "def h():\n    return 3\n")

	client := &stubClient{fallback: "def test_ok():\n    assert True"}
	p := newTestPipeline(t, client, filepath.Join(dir, "out"))

	results, err := p.ProcessPath(context.Background(), srcDir)
	require.NoError(t, err)

	var names []string
	for _, r := range results {
		names = append(names, filepath.Base(r.SourcePath))
	}
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, names)
}

func TestProcessPath_SkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))

	writeSource(t, srcDir, "good.py", "def f():\n    return 1\n")
	writeSource(t, srcDir, "bad.py", "def broken(\n    return 1\n")

	client := &stubClient{fallback: "def test_ok():\n    assert True"}
	p := newTestPipeline(t, client, filepath.Join(dir, "out"))

	results, err := p.ProcessPath(context.Background(), srcDir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good.py", filepath.Base(results[0].SourcePath))
}

func TestProcessFile_MirrorStructure(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	subDir := filepath.Join(srcDir, "util")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	source := writeSource(t, subDir, "calc.py", "def f():\n    return 1\n")

	client := &stubClient{fallback: "def test_ok():\n    assert True"}
	p, err := New(Options{
		Client:          client,
		OutputDir:       filepath.Join(dir, "out"),
		MirrorStructure: true,
		BasePath:        srcDir,
	})
	require.NoError(t, err)

	result, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "util", "test_calc.py"), result.TestFilePath)
}

func TestProcessFile_ClassMethodPrompt(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "shapes.py", `class Circle:
    def __init__(self, r):
        self.r = r

    def area(self):
        return 3.14 * self.r ** 2
`)

	var prompts []string
	client := &stubClient{fallback: "def test_ok():\n    assert True"}
	p := newTestPipeline(t, client, filepath.Join(dir, "out"))

	// Capture prompts via a wrapping client.
	p.opts.Client = clientFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return client.Complete(ctx, prompt)
	})

	_, err := p.ProcessFile(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	for _, prompt := range prompts {
		assert.Contains(t, prompt, "class Circle:")
	}
	assert.Contains(t, prompts[1], "`area`")
}

type clientFunc func(ctx context.Context, prompt string) (string, error)

func (f clientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{DryRun: true})
	assert.NoError(t, err)
}

func TestTestFileName(t *testing.T) {
	assert.Equal(t, "test_calc.py", TestFileName("/some/where/calc.py"))
	assert.Equal(t, "test_mod.py", TestFileName("mod.py"))
}

func TestIsSourceFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"calc.py", true},
		{"gui.pyw", true},
		{"test_calc.py", false},
		{"calc_test.py", false},
		{".hidden.py", false},
		{"notes.txt", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isSourceFile(tc.path), fmt.Sprintf("path %s", tc.path))
	}
}
