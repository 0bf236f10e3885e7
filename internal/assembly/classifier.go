package assembly

import (
	"sort"
	"strings"

	"unitgen/internal/logging"
)

// Bucket is a classification label attached to an import statement. It
// governs ordering in the assembled file only; it carries no semantics.
type Bucket int

const (
	// BucketThirdParty is the default: unknown imports are included rather
	// than silently dropped.
	BucketThirdParty Bucket = iota
	BucketStandard
	BucketLocal
)

// defaultStandardModules and defaultThirdPartyModules are the built-in
// recognized-name lists. They are configuration data, not grammar: a module
// missing from both lists simply lands in the third-party bucket.
var defaultStandardModules = []string{
	"unittest", "datetime", "os", "sys", "json", "typing",
	"collections", "itertools", "functools", "pathlib", "re",
}

var defaultThirdPartyModules = []string{
	"pytest", "mock", "unittest.mock", "numpy", "pandas",
	"requests", "flask", "django", "fastapi",
}

// Classifier partitions import statements into standard / third-party /
// local buckets and refines local imports against the module under test.
type Classifier struct {
	buckets map[string]Bucket
}

// NewClassifier builds a classifier from explicit recognized-name lists.
// Entries may be dotted ("unittest.mock"); the longest dotted prefix of an
// import's module path wins.
func NewClassifier(standard, thirdParty []string) *Classifier {
	buckets := make(map[string]Bucket, len(standard)+len(thirdParty))
	for _, name := range standard {
		buckets[name] = BucketStandard
	}
	for _, name := range thirdParty {
		buckets[name] = BucketThirdParty
	}
	return &Classifier{buckets: buckets}
}

// DefaultClassifier returns a classifier with the built-in module lists.
func DefaultClassifier() *Classifier {
	return NewClassifier(defaultStandardModules, defaultThirdPartyModules)
}

// ClassifiedImports holds bucketed import lines in render order.
type ClassifiedImports struct {
	Standard   []string
	ThirdParty []string
	Local      []string
}

// Partition buckets import lines. Input order is irrelevant: lines are
// sorted first so classification is deterministic. Lines that do not look
// like imports, test-module self-imports, and TODO-marked lines are dropped.
func (c *Classifier) Partition(imports []string, importPath string) ClassifiedImports {
	sorted := make([]string, len(imports))
	copy(sorted, imports)
	sort.Strings(sorted)

	var result ClassifiedImports
	for _, imp := range sorted {
		if !strings.HasPrefix(imp, "import ") && !strings.HasPrefix(imp, "from ") {
			continue
		}
		if !acceptImport(imp) {
			continue
		}

		switch c.bucketOf(imp, importPath) {
		case BucketStandard:
			result.Standard = append(result.Standard, imp)
		case BucketLocal:
			result.Local = append(result.Local, imp)
		default:
			result.ThirdParty = append(result.ThirdParty, imp)
		}
	}

	logging.Get(logging.CategoryAssembly).Debug(
		"Partition: %d standard, %d third-party, %d local",
		len(result.Standard), len(result.ThirdParty), len(result.Local))
	return result
}

// bucketOf resolves the bucket for one import line.
func (c *Classifier) bucketOf(imp, importPath string) Bucket {
	module := moduleOf(imp)

	// Longest dotted prefix of the module path wins.
	for probe := module; probe != ""; {
		if bucket, ok := c.buckets[probe]; ok {
			return bucket
		}
		idx := strings.LastIndex(probe, ".")
		if idx < 0 {
			break
		}
		probe = probe[:idx]
	}

	if importPath != "" &&
		(strings.Contains(imp, importPath) || strings.HasPrefix(imp, "from "+importPath)) {
		return BucketLocal
	}

	return BucketThirdParty
}

// moduleOf extracts the dotted module path from an import line:
// "from a.b import c" yields "a.b", "import a.b" yields "a.b".
func moduleOf(imp string) string {
	rest := imp
	if strings.HasPrefix(rest, "from ") {
		rest = strings.TrimPrefix(rest, "from ")
		if idx := strings.Index(rest, " import "); idx >= 0 {
			rest = rest[:idx]
		}
	} else {
		rest = strings.TrimPrefix(rest, "import ")
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ",")
}

// RefineLocal deduplicates and corrects local imports for the module under
// test. Placeholder and self-referential module names are replaced with the
// real import path, imports from test-file names are rejected, multi-symbol
// "from X import A, B" lines split into one line per symbol so duplicate
// (module, symbol) pairs collapse, and when nothing left references the
// import path a wildcard import is synthesized as a fallback.
//
// baseName is the source file's stem; it extends the placeholder set with
// the test module's own name so self-imports never survive.
func (c *Classifier) RefineLocal(local []string, importPath, baseName string) []string {
	placeholders := make([]string, 0, len(placeholderModules)+2)
	placeholders = append(placeholders, placeholderModules...)
	if baseName != "" {
		placeholders = append(placeholders, "test_"+baseName)
		if strings.HasPrefix(baseName, "test_") {
			placeholders = append(placeholders, baseName)
		}
	}

	refined := make(map[string]bool)
	seenSymbols := make(map[string]bool)

	for _, imp := range local {
		// Malformed or annotated lines are noise.
		if strings.Contains(imp, ")") && !strings.Contains(imp, "import") {
			continue
		}
		if strings.Contains(imp, "TODO:") || strings.Contains(imp, "#") {
			continue
		}

		for _, placeholder := range placeholders {
			if strings.Contains(imp, placeholder) {
				imp = strings.ReplaceAll(imp, placeholder, importPath)
			}
		}

		switch {
		case strings.HasPrefix(imp, "from ") && strings.Contains(imp, " import "):
			fromPart, symbols, ok := splitFromImport(imp)
			if !ok {
				continue
			}
			// Never import from a test file, including ourselves.
			if strings.Contains(fromPart, "test_") {
				continue
			}
			if fromPart == importPath || containsString(placeholders, fromPart) {
				fromPart = importPath
			}
			for _, symbol := range symbols {
				if symbol == "" || symbol == "*" {
					continue
				}
				key := fromPart + "." + symbol
				if seenSymbols[key] {
					continue
				}
				seenSymbols[key] = true
				refined["from "+fromPart+" import "+symbol] = true
			}

		case strings.HasPrefix(imp, "import "):
			module := strings.TrimSpace(strings.TrimPrefix(imp, "import "))
			if containsString(placeholders, module) || strings.Contains(module, "test_") {
				continue
			}
			refined[imp] = true
		}
	}

	// Guarantee the assembled file can reach the unit under test.
	referencesModule := false
	for imp := range refined {
		if strings.Contains(imp, importPath) {
			referencesModule = true
			break
		}
	}
	if !referencesModule {
		refined["from "+importPath+" import *"] = true
	}

	out := make([]string, 0, len(refined))
	for imp := range refined {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

// splitFromImport splits "from X import A, B" into its module and symbols.
func splitFromImport(imp string) (string, []string, bool) {
	parts := strings.SplitN(imp, " import ", 2)
	if len(parts) != 2 {
		return "", nil, false
	}
	fromPart := strings.TrimSpace(strings.TrimPrefix(parts[0], "from "))
	if fromPart == "" {
		return "", nil, false
	}

	rawSymbols := strings.Split(parts[1], ",")
	symbols := make([]string, 0, len(rawSymbols))
	for _, s := range rawSymbols {
		symbols = append(symbols, strings.TrimSpace(s))
	}
	return fromPart, symbols, true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
