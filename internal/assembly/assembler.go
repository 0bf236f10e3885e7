package assembly

import (
	"strings"

	"unitgen/internal/logging"
)

// Assembler renders classified imports and recovered function blocks into
// one well-formed test file body. Rendering is deterministic: the same
// imports and blocks always produce byte-identical output, which is what
// makes append mode idempotent.
type Assembler struct {
	classifier *Classifier
}

// NewAssembler creates an assembler using the given classifier.
func NewAssembler(classifier *Classifier) *Assembler {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Assembler{classifier: classifier}
}

// Combine renders a complete test file from accumulated imports and blocks.
//
// Layout: docstring header, standard imports, blank line, third-party
// imports (a pytest import is guaranteed), blank line, local imports, blank
// line, function blocks separated by two blank lines, trailing newline.
// Blocks sharing a declared name collapse to the first occurrence.
func (a *Assembler) Combine(imports []string, blocks []Block, moduleName, importPath string) string {
	classified := a.classifier.Partition(imports, importPath)
	unique := dedupBlocks(blocks)

	var parts []string
	parts = append(parts, `"""Tests for `+moduleName+` module."""`)
	parts = append(parts, "")

	if len(classified.Standard) > 0 {
		parts = append(parts, classified.Standard...)
		parts = append(parts, "")
	}

	thirdParty := ensurePytest(classified.ThirdParty)
	parts = append(parts, thirdParty...)
	parts = append(parts, "")

	local := a.classifier.RefineLocal(classified.Local, importPath, moduleName)
	if len(local) > 0 {
		parts = append(parts, local...)
		parts = append(parts, "")
	}

	// Two blank lines before the first function.
	parts = append(parts, "")

	for i, block := range unique {
		if i > 0 {
			parts = append(parts, "", "")
		}
		parts = append(parts, trimTrailingBlanks(block.Lines)...)
	}

	parts = append(parts, "")

	logging.Get(logging.CategoryAssembly).Debug(
		"Combine: %s - %d imports, %d blocks", moduleName, len(imports), len(unique))
	return strings.Join(parts, "\n")
}

// Append merges newly generated text into an existing assembled file. The
// existing text is re-parsed through the recovery parser, its imports and
// blocks are unioned with those recovered from the new generation (existing
// entries win on name collision), and the whole file is re-rendered.
// Appending the same generation twice yields the same file as appending it
// once, and appending an empty generation changes nothing.
func (a *Assembler) Append(existing, generated, moduleName, importPath string) string {
	existingScan := Scan(existing)
	newScan := Scan(generated)

	imports := unionImports(existingScan.Imports, newScan.Imports)
	blocks := append(existingScan.Blocks, newScan.Blocks...)

	return a.Combine(imports, blocks, moduleName, importPath)
}

// ensurePytest guarantees a generic test-framework import in the
// third-party section even when none was recovered.
func ensurePytest(thirdParty []string) []string {
	for _, imp := range thirdParty {
		if strings.Contains(imp, "pytest") {
			return thirdParty
		}
	}
	out := make([]string, 0, len(thirdParty)+1)
	out = append(out, "import pytest")
	return append(out, thirdParty...)
}

// unionImports merges import sets preserving first-seen order.
func unionImports(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, imp := range existing {
		if !seen[imp] {
			seen[imp] = true
			out = append(out, imp)
		}
	}
	for _, imp := range added {
		if !seen[imp] {
			seen[imp] = true
			out = append(out, imp)
		}
	}
	return out
}

// trimTrailingBlanks strips trailing blank lines from a block's lines.
func trimTrailingBlanks(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}
