package tui

import (
	"fmt"
	"strings"
)

// Summary is the final report of a generate run.
type Summary struct {
	Path        string
	Framework   string
	Attempts    int
	MaxAttempts int
	Passed      bool
	LastError   string
	// Index and match counts.
	IndexedInterfaces int
	IndexedClasses    int
	MatchedInterfaces int
	MatchedClasses    int
	Advisories        []string
	Branch            string
	Commit            string
}

// RenderSummary formats s for the terminal.
func (t Theme) RenderSummary(s Summary) string {
	var b strings.Builder
	if s.Passed {
		b.WriteString(t.Success.Render(fmt.Sprintf("%s Tests passed after %d attempt(s)", IconDone, s.Attempts)))
	} else {
		b.WriteString(t.ErrorText.Render(fmt.Sprintf("%s Tests did not pass after %d attempt(s)", IconFailed, s.Attempts)))
	}
	b.WriteString("\n\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(t.Label.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(t.Value.Render(value))
		b.WriteString("\n")
	}
	row("File", s.Path)
	row("Framework", s.Framework)
	row("Indexed", fmt.Sprintf("%d interfaces, %d classes", s.IndexedInterfaces, s.IndexedClasses))
	row("Matched", fmt.Sprintf("%d interfaces, %d classes", s.MatchedInterfaces, s.MatchedClasses))
	if s.MaxAttempts > 0 {
		row("Attempts", fmt.Sprintf("%d/%d", s.Attempts, s.MaxAttempts))
	}
	row("Branch", s.Branch)
	row("Commit", s.Commit)

	for _, a := range s.Advisories {
		b.WriteString(t.Advisory.Render(IconWarning + " " + a))
		b.WriteString("\n")
	}
	if !s.Passed && s.LastError != "" {
		b.WriteString("\n")
		b.WriteString(t.Label.Render("Last error:"))
		b.WriteString("\n")
		b.WriteString(indent(s.LastError, 2))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCode frames code in a bordered box titled with fileName.
func (t Theme) RenderCode(fileName, code string) string {
	return t.Title.Render(fileName) + "\n" + t.CodeBox.Render(strings.TrimRight(code, "\n"))
}

// RenderPlan lists the steps a dry run would perform.
func (t Theme) RenderPlan(title string, steps []string) string {
	var b strings.Builder
	b.WriteString(t.Title.Render(title))
	b.WriteString("\n")
	for i, s := range steps {
		b.WriteString(t.Label.Render(fmt.Sprintf("%2d. ", i+1)))
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
