package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Edit    key.Binding
	Refresh key.Binding
	PrevDay key.Binding
	NextDay key.Binding
	Today   key.Binding
	Open    key.Binding
	Help    key.Binding
	Quit    key.Binding

	// edit mode
	Save   key.Binding
	Format key.Binding
	Cancel key.Binding

	// discard prompt
	Confirm key.Binding
	Deny    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "x", "enter"), key.WithHelp("space", "toggle task")),
		Edit:    key.NewBinding(key.WithKeys("e", "i"), key.WithHelp("e", "edit")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		PrevDay: key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "prev/next day")),
		NextDay: key.NewBinding(key.WithKeys("]")),
		Today:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open file")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Format: key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "format as tasks")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),

		Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "discard")),
		Deny:    key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "keep editing")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Edit, k.PrevDay, k.Today, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Edit, k.Open},
		{k.PrevDay, k.Today, k.Refresh, k.Help, k.Quit},
	}
}

// editKeys is the help shown while the editor has focus.
type editKeys struct{ k keyMap }

func (e editKeys) ShortHelp() []key.Binding {
	return []key.Binding{e.k.Save, e.k.Format, e.k.Cancel}
}

func (e editKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{e.ShortHelp()}
}

type confirmKeys struct{ k keyMap }

func (c confirmKeys) ShortHelp() []key.Binding {
	return []key.Binding{c.k.Confirm, c.k.Deny}
}

func (c confirmKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{c.ShortHelp()}
}
