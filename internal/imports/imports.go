// Package imports computes relative TypeScript import statements for indexed
// symbols.
package imports

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
)

var sourceExts = []string{".tsx", ".ts", ".jsx", ".js"}

// Path returns the module specifier for file as seen from testDir. The
// result is always relative; mixed absolute and relative inputs are both
// resolved against the working directory first.
func Path(file, testDir string) string {
	rel, err := filepath.Rel(absPath(testDir), absPath(file))
	if err != nil {
		// Different volumes: there is no relative path, so fall back to a
		// sibling import.
		rel = filepath.Base(file)
	}
	for _, ext := range sourceExts {
		if trimmed, ok := strings.CutSuffix(rel, ext); ok {
			rel = trimmed
			break
		}
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "./") && !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Resolve returns the import statement for sym, default-shaped when the
// symbol is a default export and named otherwise.
func Resolve(sym symbols.Descriptor, testDir string) string {
	p := Path(sym.FilePath, testDir)
	if sym.IsDefaultExport {
		return fmt.Sprintf("import %s from %q;", sym.Name, p)
	}
	return fmt.Sprintf("import { %s } from %q;", sym.Name, p)
}

// ResolveAll maps Resolve over syms.
func ResolveAll(syms []symbols.Descriptor, testDir string) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, Resolve(s, testDir))
	}
	return out
}
