package generate

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var promptTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Prompt is the rendered system and user instruction pair.
type Prompt struct {
	System string
	User   string
}

type systemData struct {
	Framework framework.Framework
	Idiom     string
}

type userData struct {
	Story             string
	InterfaceContext  string
	ClassContext      string
	ExtraInstructions string
	Imports           string
	FrameworkImport   string
}

// frameworkIdiom returns the grouping and mocking hint appended to the
// framework rule of the system prompt.
func frameworkIdiom(fw framework.Framework) string {
	switch fw {
	case framework.Vitest:
		return " (describe/it or test.describe when grouping; vi for mocks)"
	case framework.Playwright:
		return " (use test() with fixtures; expect from @playwright/test)"
	default:
		return ""
	}
}

// BuildPrompt renders both prompts for req. importBlock is the deduplicated
// deterministic import text.
func BuildPrompt(req Request, importBlock string) (Prompt, error) {
	var sys, user bytes.Buffer

	if err := promptTemplates.ExecuteTemplate(&sys, "system.tmpl", systemData{
		Framework: req.Framework,
		Idiom:     frameworkIdiom(req.Framework),
	}); err != nil {
		return Prompt{}, fmt.Errorf("generate: rendering system prompt: %w", err)
	}

	if err := promptTemplates.ExecuteTemplate(&user, "user.tmpl", userData{
		Story:             req.Story,
		InterfaceContext:  InterfaceContext(req.Interfaces),
		ClassContext:      ClassContext(req.Classes),
		ExtraInstructions: req.ExtraInstructions,
		Imports:           importBlock,
		FrameworkImport:   req.Framework.ImportLine(),
	}); err != nil {
		return Prompt{}, fmt.Errorf("generate: rendering user prompt: %w", err)
	}

	return Prompt{
		System: strings.TrimSpace(sys.String()),
		User:   strings.TrimSpace(user.String()),
	}, nil
}

// InterfaceContext renders each interface as a commented TypeScript literal.
func InterfaceContext(decls []symbols.Descriptor) string {
	blocks := make([]string, 0, len(decls))
	for _, d := range decls {
		var b strings.Builder
		if d.Exported() {
			b.WriteString("// exported\n")
		} else {
			b.WriteString("// not exported in source; do NOT import\n")
		}
		fmt.Fprintf(&b, "// From: %s\n", d.FilePath)
		fmt.Fprintf(&b, "interface %s {\n", d.Name)
		for _, m := range d.Members {
			fmt.Fprintf(&b, "  %s: %s;\n", m.Name, m.Type)
		}
		b.WriteString("}")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// ClassContext renders each class with its method names.
func ClassContext(decls []symbols.Descriptor) string {
	blocks := make([]string, 0, len(decls))
	for _, d := range decls {
		blocks = append(blocks, fmt.Sprintf("// From: %s\nclass %s {\n  // Methods: %s\n}",
			d.FilePath, d.Name, strings.Join(d.MemberNames(), ", ")))
	}
	return strings.Join(blocks, "\n\n")
}
