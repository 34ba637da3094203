package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/plansync"
)

const (
	emptyText   = "(Empty)"
	missingTip  = "File does not exist, it will be created on save"
	tabReplace  = "    "
	cursorMark  = "› "
	cursorBlank = "  "
)

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{m.headerView(), "", m.bodyView(), ""}
	if info := m.infoView(); info != "" {
		sections = append(sections, info)
	}
	sections = append(sections, m.helpView())
	return strings.Join(sections, "\n")
}

func (m Model) headerView() string {
	title := styleTitle.Render("Plan · " + dayLabel(m.view.Key, m.today()))

	parts := []string{title}
	content := m.view.Document.Content
	if m.view.Editing {
		content = m.view.Draft
	}
	if done, total := checklist.Progress(content); total > 0 {
		parts = append(parts, styleProgress.Render(fmt.Sprintf("%d/%d", done, total)))
	}
	if m.view.Status.Loading || m.view.Saving {
		parts = append(parts, m.spinner.View())
	}
	if m.view.Dirty {
		parts = append(parts, styleMuted().Render("modified"))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}

// dayLabel renders a key as a weekday date with a relative hint.
func dayLabel(k, today plan.Key) string {
	t, err := k.Time()
	if err != nil {
		return k.String()
	}
	label := t.Format("Mon, 02 Jan 2006")
	tt, err := today.Time()
	if err != nil {
		return label
	}
	switch int(t.Sub(tt).Hours() / 24) {
	case 0:
		return label + " (today)"
	case -1:
		return label + " (yesterday)"
	case 1:
		return label + " (tomorrow)"
	}
	return label
}

func (m Model) bodyView() string {
	if m.view.Editing {
		return m.editor.View()
	}

	switch m.view.Phase {
	case plansync.PhaseIdle, plansync.PhaseLoading:
		return styleBody.Render(m.spinner.View() + " Loading…")
	case plansync.PhaseLoadFailed:
		return styleBody.Render(styleError.Render("Could not load the plan. Press r to retry."))
	}

	if plan.IsBlank(m.view.Document.Content) {
		return styleBody.Render(styleMuted().Render(emptyText))
	}

	lines := checklist.Lines(m.view.Document.Content)
	from, to := 0, len(lines)
	if h := m.bodyHeight(); h > 0 && len(lines) > h {
		from = m.top
		to = min(len(lines), m.top+h)
	}

	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, m.renderLine(i, lines[i]))
	}
	return styleBody.Render(strings.Join(out, "\n"))
}

func (m Model) renderLine(i int, raw string) string {
	text := strings.ReplaceAll(strings.TrimRight(raw, "\r"), "\t", tabReplace)
	if item, ok := checklist.Parse(raw); ok && item.Checked {
		text = styleDoneItem.Render(text)
	}
	if i == m.cursor {
		return styleSelected.Render(cursorMark + text)
	}
	return cursorBlank + text
}

func (m Model) infoView() string {
	var lines []string
	if m.confirming {
		lines = append(lines, stylePrompt.Render("Discard unsaved changes? (y/n)"))
	}
	if m.view.Status.Error != "" {
		lines = append(lines, styleError.Render("Error: "+m.view.Status.Error))
	}
	if m.flash != "" {
		lines = append(lines, m.flash)
	}

	var meta []string
	if m.view.Document.Path != "" {
		meta = append(meta, m.view.Document.Path)
	}
	if !m.view.Status.LastSavedAt.IsZero() {
		meta = append(meta, "saved "+m.view.Status.LastSavedAt.Format("15:04:05"))
	}
	loaded := m.view.Phase == plansync.PhaseLoaded || m.view.Phase == plansync.PhaseEditing
	if loaded && !m.view.Document.Exists {
		meta = append(meta, missingTip)
	}
	if len(meta) > 0 {
		lines = append(lines, styleMuted().Render(strings.Join(meta, " · ")))
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpView() string {
	var km help.KeyMap = m.keys
	switch {
	case m.confirming:
		km = confirmKeys{m.keys}
	case m.view.Editing:
		km = editKeys{m.keys}
	}
	return m.help.View(km)
}
