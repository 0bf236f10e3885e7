package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStandalone(t *testing.T) {
	b := NewBuilder("")

	got, err := b.Standalone("import os", "def add(a, b):\n    return a + b")
	if err != nil {
		t.Fatalf("Standalone failed: %v", err)
	}

	if !strings.Contains(got, "import os") {
		t.Error("imports not substituted")
	}
	if !strings.Contains(got, "def add(a, b):") {
		t.Error("function code not substituted")
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unresolved placeholder in prompt:\n%s", got)
	}
}

func TestClassMethod(t *testing.T) {
	b := NewBuilder("")

	got, err := b.ClassMethod("import math", "area", "class Circle:\n    def area(self):\n        pass")
	if err != nil {
		t.Fatalf("ClassMethod failed: %v", err)
	}

	if !strings.Contains(got, "`area`") {
		t.Error("function name not substituted")
	}
	if !strings.Contains(got, "class Circle:") {
		t.Error("class code not substituted")
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unresolved placeholder in prompt:\n%s", got)
	}
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	custom := "Custom template: {{function_code}}"
	if err := os.WriteFile(filepath.Join(dir, TemplateStandalone), []byte(custom), 0644); err != nil {
		t.Fatalf("Failed to write override: %v", err)
	}

	b := NewBuilder(dir)
	got, err := b.Standalone("", "def f():\n    pass")
	if err != nil {
		t.Fatalf("Standalone failed: %v", err)
	}
	if !strings.HasPrefix(got, "Custom template: def f():") {
		t.Errorf("override not used: %q", got)
	}

	// Missing override files fall back to the embedded template.
	fallback, err := b.ClassMethod("", "f", "class C:\n    pass")
	if err != nil {
		t.Fatalf("ClassMethod failed: %v", err)
	}
	if !strings.Contains(fallback, "expert Python test engineer") {
		t.Error("embedded fallback not used")
	}
}
