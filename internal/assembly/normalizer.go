// Package assembly turns raw generator output into a well-formed test file.
// It is a best-effort structural pipeline over adversarial, non-grammatical
// text: normalization strips formatting wrappers and resolves module
// placeholders, a line-scanning state machine recovers import statements and
// complete test-function blocks, a classifier buckets imports for ordering,
// and the assembler renders everything into one deterministic file body.
package assembly

import (
	"regexp"
	"strings"
)

// placeholderModules are module names LLMs commonly emit instead of the real
// import path of the unit under test.
var placeholderModules = []string{
	"some_module",
	"your_module",
	"module_name",
	"my_module",
	"sample_module",
	"<module_name>",
	"path.to.module",
}

var (
	codeFenceRe      = regexp.MustCompile("```[a-zA-Z0-9_+-]*")
	relativeSubmodRe = regexp.MustCompile(`from \.([A-Za-z_][\w.]*)`)
)

// Normalizer rewrites raw generation text into normalized, line-oriented free
// text ready for recovery parsing. All operations are best-effort heuristics:
// Normalize never fails, it only degrades toward the original text.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize applies, in order: fence stripping, placeholder-module
// resolution, relative-import rewriting, the synthetic-import fallback, and
// exact-duplicate import line removal.
//
// importPath is the real dotted import path of the module under test;
// functionName is the function the generation was requested for.
func (n *Normalizer) Normalize(raw, importPath, functionName string) string {
	text := StripCodeFences(raw)
	text = resolvePlaceholders(text, importPath)
	text = rewriteRelativeImports(text, importPath)
	text = ensureModuleImport(text, importPath, functionName)
	text = dropDuplicateImportLines(text)
	return strings.TrimSpace(text)
}

// StripCodeFences removes markdown code fence delimiters anywhere in the
// text, including opening fences tagged with a language name, and trims any
// residual fence characters left at the boundaries.
func StripCodeFences(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "`")
	return strings.TrimSpace(text)
}

// resolvePlaceholders replaces known placeholder module tokens in "from X"
// and "import X" forms with the real import path.
func resolvePlaceholders(text, importPath string) string {
	for _, placeholder := range placeholderModules {
		text = strings.ReplaceAll(text, "from "+placeholder, "from "+importPath)
		text = strings.ReplaceAll(text, "import "+placeholder, "import "+importPath)
	}
	return text
}

// rewriteRelativeImports converts relative-style imports to absolute form by
// substituting the real import path for the leading dot segment:
// "from . import x" becomes "from <path> import x" and "from .sub import x"
// becomes "from <path>.sub import x".
func rewriteRelativeImports(text, importPath string) string {
	if !strings.Contains(text, "from .") {
		return text
	}
	text = relativeSubmodRe.ReplaceAllString(text, "from "+importPath+".$1")
	text = strings.ReplaceAll(text, "from . import", "from "+importPath+" import")
	return text
}

// ensureModuleImport prepends a synthetic import of the function under test
// when the generation never references the real import path but does use the
// function name. The line is only inserted when the text does not already
// begin with an import, so it never lands in the middle of an import block.
func ensureModuleImport(text, importPath, functionName string) string {
	if importPath == "" || functionName == "" {
		return text
	}
	if strings.Contains(text, importPath) || !strings.Contains(text, functionName) {
		return text
	}
	head := strings.TrimLeft(text, " \t\n")
	if strings.HasPrefix(head, "import") || strings.HasPrefix(head, "from") {
		return text
	}
	return "from " + importPath + " import " + functionName + "\n\n" + text
}

// dropDuplicateImportLines removes exact repeats of import lines while
// leaving every other line untouched.
func dropDuplicateImportLines(text string) string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]bool)
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") {
			if seen[trimmed] {
				continue
			}
			seen[trimmed] = true
		}
		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}
