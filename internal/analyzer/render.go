package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// renderImport renders an import statement in canonical single-line form:
// parenthesized and continuation-split imports are flattened, whitespace runs
// collapse to single spaces, and symbol lists get exactly ", " separators.
func renderImport(text string) string {
	flattener := strings.NewReplacer(
		"(", " ",
		")", " ",
		"\\", " ",
		"\n", " ",
		"\r", " ",
		"\t", " ",
	)
	flat := flattener.Replace(text)
	flat = strings.Join(strings.Fields(flat), " ")
	flat = strings.ReplaceAll(flat, " ,", ",")
	flat = strings.ReplaceAll(flat, ",", ", ")
	flat = strings.Join(strings.Fields(flat), " ")
	flat = strings.TrimSuffix(flat, ",")
	return strings.TrimSpace(flat)
}

// renderDefinition re-renders a definition node independent of the original
// file layout: the block is dedented to column zero, comment-only lines are
// dropped, trailing whitespace is stripped, and blank-line runs collapse to a
// single blank line.
func renderDefinition(node *sitter.Node, content []byte) string {
	text := string(content[node.StartByte():node.EndByte()])
	indent := int(node.StartPoint().Column)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 {
			// The span starts mid-line at the definition keyword, so only
			// continuation lines carry the original absolute indentation.
			line = stripIndent(line, indent)
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
		case strings.HasPrefix(trimmed, "#"):
			// Comment noise does not survive re-rendering.
			continue
		default:
			out = append(out, strings.TrimRight(line, " \t"))
		}
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}

// stripIndent removes up to n columns of leading whitespace from a line.
// Tabs count as a single column, matching Tree-sitter point columns.
func stripIndent(line string, n int) string {
	removed := 0
	for removed < n && len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
		line = line[1:]
		removed++
	}
	return line
}
