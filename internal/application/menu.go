package application

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	KEY MENU
---------------------------------------- */

// MenuItem binds a key to an action on the model. Items without an
// Action are shown in the help line only.
type MenuItem struct {
	Binding key.Binding
	Action  func(m *Model) tea.Cmd
}

type Menu struct {
	Items []MenuItem
}

func buildMenu() Menu {
	return Menu{
		Items: []MenuItem{
			{
				Binding: key.NewBinding(key.WithKeys("up", "k", "down", "j"), key.WithHelp("↑/↓", "move")),
			},
			{
				Binding: key.NewBinding(key.WithKeys("u", " "), key.WithHelp("u", "toggle used")),
				Action:  (*Model).toggleSelected,
			},
			{
				Binding: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
				Action:  (*Model).export,
			},
			{
				Binding: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
				Action:  func(*Model) tea.Cmd { return tea.Quit },
			},
		},
	}
}

// Match returns the action bound to msg, or nil.
func (m Menu) Match(msg tea.KeyMsg) func(*Model) tea.Cmd {
	for _, item := range m.Items {
		if item.Action != nil && key.Matches(msg, item.Binding) {
			return item.Action
		}
	}
	return nil
}

// Help renders the bindings as "key action • key action".
func (m Menu) Help() string {
	parts := make([]string, 0, len(m.Items))
	for _, item := range m.Items {
		h := item.Binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
