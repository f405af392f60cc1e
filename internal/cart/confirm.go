package cart

import (
	"context"
	"fmt"
)

// Confirmer asks the user to approve a destructive change.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Answer is a pre-recorded reply. It remembers the last prompt it was shown so
// callers can relay it when the change was not approved.
type Answer struct {
	Approved bool
	Prompt   string
}

// Confirm implements Confirmer.
func (a *Answer) Confirm(_ context.Context, prompt string) bool {
	a.Prompt = prompt
	return a.Approved
}

// Asked reports whether a prompt was shown and declined.
func (a *Answer) Asked() bool {
	return a.Prompt != "" && !a.Approved
}

func removePrompt(destination string) string {
	return fmt.Sprintf("Remove \"%s\" from your booking?", destination)
}

const clearPrompt = "Remove ALL your reservations?"
