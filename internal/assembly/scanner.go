package assembly

import (
	"strings"

	"unitgen/internal/logging"
)

// Recovery parser for generated test code.
//
// Generator output has no grammar worth trusting, so structure is recovered
// from line-level cues only: import prefixes, decorator markers, the
// "def test_" naming convention, and indentation. The machine has two states
// (outside / inside a function) plus a pending-decorator buffer; anything it
// cannot place in a complete block is dropped, never guessed at.

// lineKind classifies a single line of normalized text.
type lineKind int

const (
	kindBlank lineKind = iota
	kindComment
	kindImport
	kindDecorator
	kindTestDef
	kindLoneParen
	kindIndented
	kindOther
)

// classifyLine assigns a lineKind using structural cues only.
func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		return kindBlank
	case trimmed == ")":
		return kindLoneParen
	case isTestDefLine(line):
		return kindTestDef
	case strings.HasPrefix(trimmed, "@"):
		return kindDecorator
	case strings.HasPrefix(trimmed, "#"):
		return kindComment
	case strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from "):
		return kindImport
	case line[0] == ' ' || line[0] == '\t':
		return kindIndented
	default:
		return kindOther
	}
}

// isTestDefLine reports whether a line starts a test function at top level.
func isTestDefLine(line string) bool {
	return strings.HasPrefix(line, "def test_") || strings.HasPrefix(line, "async def test_")
}

// acceptImport filters recovered import lines: self-imports of a test module
// and TODO-marked lines are generator noise, not imports.
func acceptImport(line string) bool {
	if strings.Contains(line, "from test_") {
		return false
	}
	if strings.Contains(line, "TODO:") {
		return false
	}
	return true
}

// Block is one recovered candidate test function: an ordered list of lines,
// optionally preceded by decorator lines.
type Block struct {
	Lines []string
}

// Text returns the block joined into a single string.
func (b Block) Text() string {
	return strings.Join(b.Lines, "\n")
}

// Name returns the declared test-function name, or "" when the block has no
// recognizable definition line.
func (b Block) Name() string {
	for _, line := range b.Lines {
		if !isTestDefLine(line) {
			continue
		}
		decl := strings.TrimPrefix(line, "async ")
		decl = strings.TrimPrefix(decl, "def ")
		if idx := strings.Index(decl, "("); idx > 0 {
			return strings.TrimSpace(decl[:idx])
		}
	}
	return ""
}

// isComplete reports whether the block satisfies the completeness invariant:
// its text contains an assertion, an explicit pass, or an explicit raise.
// Blocks failing this are discarded, not emitted.
func (b Block) isComplete() bool {
	text := b.Text()
	return strings.Contains(text, "assert") ||
		strings.Contains(text, "pass") ||
		strings.Contains(text, "raise")
}

// ScanResult holds the structure recovered from one normalized generation.
type ScanResult struct {
	// Imports are accepted import lines in first-seen order, exact-dedup.
	Imports []string
	// Blocks are complete test-function blocks, deduplicated by declared
	// name (first occurrence in scan order wins).
	Blocks []Block
}

// scanState is the recovery machine state.
type scanState int

const (
	stateOutside scanState = iota
	stateInFunction
)

// scanner accumulates recovery state across lines.
type scanner struct {
	state      scanState
	current    []string
	decorators []string
	imports    []string
	seenImport map[string]bool
	blocks     []Block
}

// Scan runs the recovery parser over normalized generation text.
func Scan(text string) ScanResult {
	s := &scanner{seenImport: make(map[string]bool)}

	for _, line := range strings.Split(text, "\n") {
		s.feed(line)
	}
	s.closeBlock()

	blocks := dedupBlocks(s.blocks)
	logging.RecoveryDebug("Scan: recovered %d imports, %d blocks (%d unique)",
		len(s.imports), len(s.blocks), len(blocks))

	return ScanResult{Imports: s.imports, Blocks: blocks}
}

// feed advances the machine by one line.
func (s *scanner) feed(line string) {
	kind := classifyLine(line)

	// Malformed-line recovery: a lone closing parenthesis is always noise;
	// comments outside a function carry no structure.
	if kind == kindLoneParen {
		return
	}
	if kind == kindComment && s.state == stateOutside {
		return
	}

	switch kind {
	case kindImport:
		if s.state == stateOutside {
			s.addImport(line)
			return
		}
		if line[0] == ' ' || line[0] == '\t' {
			// Indented import inside a function body is a continuation.
			s.current = append(s.current, line)
			return
		}
		// A top-level import terminates the current function body.
		s.closeBlock()
		s.decorators = nil
		s.addImport(line)

	case kindDecorator:
		if strings.TrimSpace(line) != line && s.state == stateInFunction {
			// Indented decorator: nested function inside the block.
			s.current = append(s.current, line)
			return
		}
		// Decorators never belong to the block they follow; close it and
		// hold the decorator for the next function start.
		s.closeBlock()
		s.decorators = append(s.decorators, line)

	case kindTestDef:
		s.closeBlock()
		s.current = append(s.current, s.decorators...)
		s.decorators = nil
		s.current = append(s.current, line)
		s.state = stateInFunction

	case kindBlank, kindIndented, kindComment:
		if s.state == stateInFunction {
			s.current = append(s.current, line)
		}

	default: // kindOther
		if s.state == stateInFunction {
			// A non-blank, non-indented, non-decorator line ends the body.
			s.closeBlock()
			s.decorators = nil
		}
		// Top-level statements outside any function are unsupported noise.
	}
}

// addImport records an accepted import line.
func (s *scanner) addImport(line string) {
	trimmed := strings.TrimSpace(line)
	if !acceptImport(trimmed) || s.seenImport[trimmed] {
		return
	}
	s.seenImport[trimmed] = true
	s.imports = append(s.imports, trimmed)
}

// closeBlock finishes the block being accumulated, applying the completeness
// invariant and trimming trailing blank lines so re-scanning rendered output
// yields identical blocks. The pending-decorator buffer is left alone; the
// caller decides whether buffered decorators survive the close.
func (s *scanner) closeBlock() {
	lines := s.current
	s.current = nil
	s.state = stateOutside

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return
	}

	block := Block{Lines: lines}
	if !block.isComplete() {
		logging.RecoveryDebug("Scan: dropping incomplete block %q", block.Name())
		return
	}
	s.blocks = append(s.blocks, block)
}

// dedupBlocks keeps the first block for each declared name in scan order.
func dedupBlocks(blocks []Block) []Block {
	seen := make(map[string]bool)
	unique := make([]Block, 0, len(blocks))

	for _, block := range blocks {
		name := block.Name()
		if name == "" {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		unique = append(unique, block)
	}

	return unique
}
