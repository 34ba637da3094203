package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted      lipgloss.TerminalColor = ac("240", "243")
	colorAccent     lipgloss.TerminalColor = ac("27", "62")
	colorSelectedBg lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorSelectedFg lipgloss.TerminalColor = ac("235", "255")
	colorError      lipgloss.TerminalColor = ac("160", "203")
	colorDone       lipgloss.TerminalColor = ac("28", "114")
)

var (
	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleSelected = lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg)
	styleError    = lipgloss.NewStyle().Foreground(colorError)
	styleProgress = lipgloss.NewStyle().Foreground(colorDone)
	styleDoneItem = lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true)
	styleBody     = lipgloss.NewStyle().Padding(0, 1)
	stylePrompt   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
)

func styleMuted() lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(colorMuted)
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

// applyColorProfile honors NO_COLOR and otherwise trusts the terminal.
func applyColorProfile() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.ColorProfile())
}
