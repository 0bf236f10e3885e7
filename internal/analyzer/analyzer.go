// Package analyzer extracts import statements and function definitions from
// Python source files. It uses Tree-sitter for accurate AST parsing and
// re-renders every definition in canonical form so that layout and comment
// noise from the original file does not leak into downstream prompts.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"unitgen/internal/logging"
)

// FunctionDescriptor describes one function or method definition found in a
// source file.
type FunctionDescriptor struct {
	// Name is the declared function name. Names are not guaranteed unique
	// across a file: a class may have a method with the same name as a
	// module-level function.
	Name string

	// Code is the complete re-rendered definition: decorators, signature,
	// annotations, docstring, and body, dedented to column zero.
	Code string

	// ClassCode is the re-rendered enclosing class when the function is
	// directly nested in a class body, empty otherwise.
	ClassCode string
}

// IsMethod reports whether the function is a class method.
func (f FunctionDescriptor) IsMethod() bool {
	return f.ClassCode != ""
}

// Analysis is the structured result of analyzing one source file.
// Imports and Functions are in document order.
type Analysis struct {
	Imports   []string
	Functions []FunctionDescriptor
}

// StructuralError reports source text that could not be parsed. Analysis of
// such a file is aborted wholesale; partial structure is never returned.
type StructuralError struct {
	Path string
	Line int // 1-indexed line of the first error node, 0 if unknown
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("unparsable source in %s at line %d", e.Path, e.Line)
	}
	return fmt.Sprintf("unparsable source in %s", e.Path)
}

// PythonAnalyzer implements structure extraction for Python source files.
type PythonAnalyzer struct {
	parser *sitter.Parser
}

// NewPythonAnalyzer creates a new Python analyzer.
func NewPythonAnalyzer() *PythonAnalyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &PythonAnalyzer{parser: parser}
}

// SupportedExtensions returns [".py", ".pyw"].
func (a *PythonAnalyzer) SupportedExtensions() []string {
	return []string{".py", ".pyw"}
}

// AnalyzeFile reads and analyzes a source file from disk.
func (a *PythonAnalyzer) AnalyzeFile(path string) (*Analysis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return a.Analyze(path, content)
}

// Analyze extracts imports and function descriptors from source content.
// The path is used only for error messages and logging.
func (a *PythonAnalyzer) Analyze(path string, content []byte) (*Analysis, error) {
	start := time.Now()
	logging.AnalyzerDebug("PythonAnalyzer: parsing file: %s", filepath.Base(path))

	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.Get(logging.CategoryAnalyzer).Error("PythonAnalyzer: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("parse failed for %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		logging.Get(logging.CategoryAnalyzer).Error("PythonAnalyzer: structural error: %s line %d", path, line)
		return nil, &StructuralError{Path: path, Line: line}
	}

	analysis := &Analysis{}
	seenImports := make(map[string]bool)
	a.walk(root, content, "", analysis, seenImports)

	logging.AnalyzerDebug("PythonAnalyzer: analyzed %s - %d imports, %d functions in %v",
		filepath.Base(path), len(analysis.Imports), len(analysis.Functions), time.Since(start))
	return analysis, nil
}

// walk recursively visits the AST in document order.
// classCode is the re-rendered text of the directly enclosing class body, or
// empty when the current scope is not a class body.
func (a *PythonAnalyzer) walk(node *sitter.Node, content []byte, classCode string, analysis *Analysis, seenImports map[string]bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			rendered := renderImport(string(content[child.StartByte():child.EndByte()]))
			if rendered != "" && !seenImports[rendered] {
				seenImports[rendered] = true
				analysis.Imports = append(analysis.Imports, rendered)
			}

		case "class_definition":
			a.walkClass(child, child, content, analysis, seenImports)

		case "function_definition":
			a.addFunction(child, child, content, classCode, analysis)
			// Nested defs are functions in their own right, but they are
			// not directly class-scoped.
			if body := child.ChildByFieldName("body"); body != nil {
				a.walk(body, content, "", analysis, seenImports)
			}

		case "decorated_definition":
			a.walkDecorated(child, content, classCode, analysis, seenImports)

		default:
			// Recurse into other compound statements (if/try/with blocks
			// can hold imports and defs).
			a.walk(child, content, classCode, analysis, seenImports)
		}
	}
}

// walkClass renders a class and visits its body for methods.
// span is the node whose byte range covers the full definition; for a
// decorated class it is the decorated_definition node.
func (a *PythonAnalyzer) walkClass(class, span *sitter.Node, content []byte, analysis *Analysis, seenImports map[string]bool) {
	classCode := renderDefinition(span, content)
	if body := class.ChildByFieldName("body"); body != nil {
		a.walk(body, content, classCode, analysis, seenImports)
	}
}

// walkDecorated unwraps a decorated_definition so the decorators are part of
// the rendered code for the inner definition.
func (a *PythonAnalyzer) walkDecorated(node *sitter.Node, content []byte, classCode string, analysis *Analysis, seenImports map[string]bool) {
	for j := 0; j < int(node.NamedChildCount()); j++ {
		inner := node.NamedChild(j)
		switch inner.Type() {
		case "function_definition":
			a.addFunction(inner, node, content, classCode, analysis)
			if body := inner.ChildByFieldName("body"); body != nil {
				a.walk(body, content, "", analysis, seenImports)
			}
		case "class_definition":
			a.walkClass(inner, node, content, analysis, seenImports)
		}
	}
}

// addFunction appends a descriptor for a function definition.
// span covers the full definition including any decorators.
func (a *PythonAnalyzer) addFunction(fn, span *sitter.Node, content []byte, classCode string, analysis *Analysis) {
	nameNode := fn.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	analysis.Functions = append(analysis.Functions, FunctionDescriptor{
		Name:      name,
		Code:      renderDefinition(span, content),
		ClassCode: classCode,
	})
}

// firstErrorLine locates the first ERROR or MISSING node for diagnostics.
func firstErrorLine(node *sitter.Node) int {
	if node.IsError() || node.IsMissing() {
		return int(node.StartPoint().Row) + 1
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if line := firstErrorLine(node.Child(i)); line > 0 {
			return line
		}
	}
	return 0
}
