// Package prompt renders the interactive pickers and confirmations used when
// a command runs in a terminal without explicit arguments.
package prompt

import (
	"errors"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/terminal"
)

// ErrCanceled reports a prompt dismissed with Esc or Ctrl+C.
var ErrCanceled = errors.New(messages.PromptCanceled)

// ErrNotInteractive reports a prompt requested without a terminal.
var ErrNotInteractive = errors.New(messages.PickRequiresTerminal)

// UI defines the interaction methods.
type UI interface {
	MultiSelect(title string, options []string, selected *[]string) error
	Confirm(title string, value *bool) error
}

// HuhUI implements UI using charmbracelet/huh.
type HuhUI struct {
	isTerminal func() bool
}

var runFormFunc = func(form *huh.Form) error { return form.Run() }

// NewHuhUI creates a HuhUI that requires terminal.IsInteractive.
func NewHuhUI() *HuhUI {
	return &HuhUI{isTerminal: terminal.IsInteractive}
}

// Interactive reports whether prompts can be shown.
func (ui *HuhUI) Interactive() bool {
	checker := ui.isTerminal
	if checker == nil {
		checker = terminal.IsInteractive
	}
	return checker()
}

// keyMap binds both Esc and Ctrl+C to abort. Filtering is off; pickers list
// the mods of one profile.
func keyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "cancel"))
	km.MultiSelect.Filter.SetEnabled(false)
	km.MultiSelect.SetFilter.SetEnabled(false)
	km.MultiSelect.ClearFilter.SetEnabled(false)
	return km
}

// interruptFilter converts InterruptMsg into QuitMsg so bubbletea takes its
// graceful shutdown path and clears the form before returning.
func interruptFilter(_ tea.Model, msg tea.Msg) tea.Msg {
	if _, ok := msg.(tea.InterruptMsg); ok {
		return tea.QuitMsg{}
	}
	return msg
}

func (ui *HuhUI) runForm(form *huh.Form) error {
	if !ui.Interactive() {
		return ErrNotInteractive
	}
	form.WithKeyMap(keyMap())
	form.WithProgramOptions(
		tea.WithOutput(os.Stderr),
		tea.WithFilter(interruptFilter),
	)
	err := runFormFunc(form)
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCanceled
	}
	return err
}

// MultiSelect renders a multi-choice prompt.
func (ui *HuhUI) MultiSelect(title string, options []string, selected *[]string) error {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}
	return ui.runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Filterable(false).
				Options(opts...).
				Value(selected),
		),
	))
}

// Confirm renders a yes/no prompt.
func (ui *HuhUI) Confirm(title string, value *bool) error {
	return ui.runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(value),
		),
	))
}
