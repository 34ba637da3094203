package tui

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
)

type externalEditorDoneMsg struct {
	err error
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

// openNote hands the note file to the user's editor. The panel refreshes once
// the editor exits.
func openNote(path string) (tea.Cmd, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("no file path for this day")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New("file does not exist yet, save the plan first")
	}
	args := splitShellWords(externalEditorName())
	if len(args) == 0 {
		args = []string{"vi"}
	}
	cmd := exec.Command(args[0], append(args[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return externalEditorDoneMsg{err: err}
	}), nil
}

// splitShellWords splits a shell-like command string into argv. Single quotes,
// double quotes and backslash escapes outside single quotes are honored.
func splitShellWords(s string) []string {
	var (
		out      []string
		cur      []rune
		inSingle bool
		inDouble bool
		escaped  bool
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
	}

	for _, r := range s {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case !inSingle && !inDouble && unicode.IsSpace(r):
			flush()
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}
