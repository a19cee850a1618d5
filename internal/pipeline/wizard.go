package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrWizardCancelled is returned when the user aborts a prompt or declines
// the confirmation.
var ErrWizardCancelled = errors.New("wizard cancelled by user")

const wizardWidth = 80

// minStoryLength rejects one-word stories that cannot yield entities.
const minStoryLength = 10

// PromptStory asks for a user story in a multi-line text field.
func PromptStory() (string, error) {
	var text string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("User story").
				Description("Describe the behaviour to test, e.g. As a user I want to add items to my shopping cart.").
				CharLimit(4000).
				Validate(validateStory).
				Value(&text),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth).
		Run()
	if err != nil {
		return "", mapWizardErr(err)
	}
	return strings.TrimSpace(text), nil
}

// ConfirmWrite shows summary and asks whether to write the generated file.
// A declined confirmation returns ErrWizardCancelled.
func ConfirmWrite(summary string) error {
	confirmed := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write generated test?").
				Description(summary).
				Affirmative("Write").
				Negative("Discard").
				Value(&confirmed),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth).
		Run()
	if err != nil {
		return mapWizardErr(err)
	}
	if !confirmed {
		return ErrWizardCancelled
	}
	return nil
}

// WriteSummary is the confirmation text for a finished outcome.
func WriteSummary(path string, attempts int, passed bool) string {
	status := "passed"
	if !passed {
		status = "did not pass"
	}
	return fmt.Sprintf("%s\nValidation %s after %d attempt(s).", path, status, attempts)
}

func validateStory(s string) error {
	if len(strings.TrimSpace(s)) < minStoryLength {
		return fmt.Errorf("story must be at least %d characters", minStoryLength)
	}
	return nil
}

// mapWizardErr converts huh aborts into ErrWizardCancelled.
func mapWizardErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrWizardCancelled
	}
	return fmt.Errorf("wizard: %w", err)
}
