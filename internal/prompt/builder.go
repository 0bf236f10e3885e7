// Package prompt builds the generation prompts sent to the LLM collaborator.
// Templates ship baked into the binary via go:embed; a template directory can
// override them per project without rebuilding.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"unitgen/internal/logging"
)

// Template file names. These match the original prompt pack layout so user
// overrides can be dropped in with familiar names.
const (
	TemplateStandalone  = "generate_unittest_standalone.txt"
	TemplateClassMethod = "generate_unittest_class.txt"
)

//go:embed templates
var embeddedTemplates embed.FS

// Builder renders prompts from templates. Placeholders use the
// {{snake_case}} convention: {{imports_code}}, {{function_code}},
// {{function_name}}, {{parent_class_code}}.
type Builder struct {
	// overrideDir holds user template overrides; empty means embedded only.
	overrideDir string
}

// NewBuilder creates a Builder. dir may be empty to use only the embedded
// templates.
func NewBuilder(dir string) *Builder {
	return &Builder{overrideDir: dir}
}

// Standalone renders the prompt for a module-level function.
func (b *Builder) Standalone(importsCode, functionCode string) (string, error) {
	tmpl, err := b.load(TemplateStandalone)
	if err != nil {
		return "", err
	}
	prompt := strings.ReplaceAll(tmpl, "{{imports_code}}", importsCode)
	prompt = strings.ReplaceAll(prompt, "{{function_code}}", functionCode)
	return prompt, nil
}

// ClassMethod renders the prompt for a method, giving the generator the full
// enclosing class for context.
func (b *Builder) ClassMethod(importsCode, functionName, classCode string) (string, error) {
	tmpl, err := b.load(TemplateClassMethod)
	if err != nil {
		return "", err
	}
	prompt := strings.ReplaceAll(tmpl, "{{imports_code}}", importsCode)
	prompt = strings.ReplaceAll(prompt, "{{function_name}}", functionName)
	prompt = strings.ReplaceAll(prompt, "{{parent_class_code}}", classCode)
	return prompt, nil
}

// load fetches a template, preferring the override directory.
func (b *Builder) load(name string) (string, error) {
	if b.overrideDir != "" {
		path := filepath.Join(b.overrideDir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			logging.Get(logging.CategoryPipeline).Debug("prompt: using override template %s", path)
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
	}

	data, err := embeddedTemplates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %s: %w", name, err)
	}
	return string(data), nil
}
