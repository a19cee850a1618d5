package generate

import (
	"regexp"
	"slices"
	"strings"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
)

var (
	// reCodeFence captures the body of the first ```, ```ts or ```typescript
	// block. The non-greedy body stops at the first closing fence.
	reCodeFence = regexp.MustCompile("(?s)```(?:typescript|ts)?\n(.*?)\n```")

	reImportLine = regexp.MustCompile(`^\s*import\s`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reFromModule = regexp.MustCompile(`from ["']([^"']+)["']`)
	reNameSuffix = regexp.MustCompile(`Props|Interface|Type`)
)

// FallbackName is the file stem used when nothing matched.
const FallbackName = "generated"

// TestFileSuffix is appended to every generated file stem.
const TestFileSuffix = ".test.tsx"

// ExtractCode returns the body of the first fenced block in text, or text
// unchanged when there is none.
func ExtractCode(text string) string {
	if m := reCodeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// UniqueLines removes exact duplicates from lines, keeping first occurrences.
func UniqueLines(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// normalizeImport collapses whitespace runs so formatting variants compare
// equal.
func normalizeImport(line string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(line, " "))
}

// DedupeImports hoists import lines to the top of code, dropping repeats of
// the same normalized statement and any second import from a framework
// module. Non-import lines keep their relative order after a blank line.
func DedupeImports(code string) string {
	seen := make(map[string]bool)
	seenFramework := make(map[string]bool)
	var importLines, otherLines []string

	for _, line := range strings.Split(code, "\n") {
		if !reImportLine.MatchString(line) {
			otherLines = append(otherLines, line)
			continue
		}

		normalized := normalizeImport(line)
		if m := reFromModule.FindStringSubmatch(normalized); m != nil && slices.Contains(framework.Modules, m[1]) {
			if seenFramework[m[1]] {
				continue
			}
			seenFramework[m[1]] = true
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		importLines = append(importLines, line)
	}

	all := append(importLines, "")
	all = append(all, otherLines...)
	return strings.TrimSpace(strings.Join(all, "\n"))
}

// AssembleCode turns a raw completion into the final test source: the fenced
// body is extracted, the deterministic header is prepended and imports are
// deduplicated.
func AssembleCode(completion string, fw framework.Framework, importBlock string) string {
	code := ExtractCode(completion)

	var header []string
	if line := fw.ImportLine(); line != "" {
		header = append(header, line)
	}
	if importBlock != "" {
		header = append(header, importBlock)
	}
	if len(header) > 0 {
		code = strings.Join(header, "\n") + "\n\n" + code
	}
	return DedupeImports(code)
}

// FileName derives the test file name from the first matched interface,
// then the first matched class.
func FileName(interfaces, classes []symbols.Descriptor) string {
	stem := FallbackName
	switch {
	case len(interfaces) > 0:
		stem = reNameSuffix.ReplaceAllString(interfaces[0].Name, "")
	case len(classes) > 0:
		stem = classes[0].Name
	}
	if stem == "" {
		stem = FallbackName
	}
	return stem + TestFileSuffix
}
