package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// ImportPath derives the dotted Python import path for a source file by
// walking up from its directory while each level is a package (holds an
// __init__.py). A file outside any package imports by bare module name.
func ImportPath(sourcePath string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}

	parts := []string{stem(abs)}
	dir := filepath.Dir(abs)
	for isPackageDir(dir) {
		parts = append([]string{filepath.Base(dir)}, parts...)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return strings.Join(parts, ".")
}

func isPackageDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "__init__.py"))
	return err == nil && !info.IsDir()
}
