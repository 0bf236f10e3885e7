package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	EnableForTesting(tempDir)
	defer Close()

	categories := []Category{
		CategoryBoot,
		CategoryAnalyzer,
		CategoryGeneration,
		CategoryRecovery,
		CategoryAssembly,
		CategoryPipeline,
		CategoryCache,
		CategoryWatch,
	}

	for _, category := range categories {
		Get(category).Info("test message for %s", category)
	}
	Close()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read log dir: %v", err)
	}

	found := make(map[string]bool)
	for _, entry := range entries {
		for _, category := range categories {
			if strings.Contains(entry.Name(), "_"+string(category)+".log") {
				found[string(category)] = true
			}
		}
	}

	for _, category := range categories {
		if !found[string(category)] {
			t.Errorf("No log file created for category %s", category)
		}
	}
}

func TestLogContent(t *testing.T) {
	tempDir := t.TempDir()
	EnableForTesting(tempDir)
	defer Close()

	Get(CategoryRecovery).Debug("recovered %d blocks", 3)
	Get(CategoryRecovery).Warn("dropping incomplete block %q", "test_x")
	Close()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(tempDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "[DEBUG] recovered 3 blocks") {
		t.Errorf("Missing debug entry in:\n%s", content)
	}
	if !strings.Contains(content, `[WARN] dropping incomplete block "test_x"`) {
		t.Errorf("Missing warn entry in:\n%s", content)
	}
}

func TestInitialize_NoConfigIsSilent(t *testing.T) {
	tempDir := t.TempDir()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Close()

	if IsDebugMode() {
		t.Error("Debug mode must be off without a config file")
	}

	// No logs directory should be created in production mode.
	if _, err := os.Stat(filepath.Join(tempDir, ".unitgen", "logs")); !os.IsNotExist(err) {
		t.Error("Logs directory created despite debug mode being off")
	}

	// Logging must be a no-op, not a crash.
	Get(CategoryPipeline).Info("ignored")
}

func TestInitialize_DebugModeFromConfig(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".unitgen")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := "logging:\n  debug_mode: true\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Close()

	if !IsDebugMode() {
		t.Fatal("Debug mode not picked up from config")
	}
	if _, err := os.Stat(filepath.Join(configDir, "logs")); err != nil {
		t.Errorf("Logs directory missing: %v", err)
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".unitgen")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := "logging:\n  debug_mode: true\n  level: debug\n  categories:\n    cache: false\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Close()

	if IsCategoryEnabled(CategoryCache) {
		t.Error("Disabled category reported as enabled")
	}
	if !IsCategoryEnabled(CategoryAnalyzer) {
		t.Error("Unlisted category must default to enabled")
	}
}
