// Package checklist parses, toggles and normalizes checklist markup such as
// "- [ ] task" and "- [x] done".
package checklist

import (
	"regexp"
	"strings"
)

var (
	// head: indent, dash, optional spacing and the opening bracket.
	itemRe   = regexp.MustCompile(`^(\s*-\s*\[)(.)(\].*)$`)
	bulletRe = regexp.MustCompile(`^\s*-\s+`)
	blankRe  = regexp.MustCompile(`^\s*$`)
)

const (
	markerUnchecked = " "
	markerChecked   = "x"
)

// Line is the parsed view of a single checklist line.
type Line struct {
	Indent  string
	Checked bool
	Text    string

	head   string
	marker string
	tail   string
}

// Parse reports whether line is a checklist item and returns its parts.
// Only " ", "x" and "X" are accepted as markers.
func Parse(line string) (Line, bool) {
	m := itemRe.FindStringSubmatch(line)
	if m == nil {
		return Line{}, false
	}
	marker := m[2]
	var checked bool
	switch marker {
	case markerUnchecked:
		checked = false
	case "x", "X":
		checked = true
	default:
		return Line{}, false
	}
	head, tail := m[1], m[3]
	return Line{
		Indent:  head[:len(head)-len(strings.TrimLeft(head, " \t\f\v\r"))],
		Checked: checked,
		Text:    strings.TrimRight(strings.TrimLeft(tail[1:], " \t\f\v"), "\r"),
		head:    head,
		marker:  marker,
		tail:    tail,
	}, true
}

// String reassembles the line exactly as it was parsed, with the current
// marker.
func (l Line) String() string {
	return l.head + l.marker + l.tail
}

// Toggled returns the line with its marker flipped between " " and "x".
func (l Line) Toggled() Line {
	if l.Checked {
		l.marker = markerUnchecked
	} else {
		l.marker = markerChecked
	}
	l.Checked = !l.Checked
	return l
}

// Toggle flips the marker of a checklist line. ok is false, and line is
// returned unchanged, when the line is not a checklist item.
func Toggle(line string) (string, bool) {
	l, ok := Parse(line)
	if !ok {
		return line, false
	}
	return l.Toggled().String(), true
}

// IsBullet reports whether line is a plain "- text" bullet.
func IsBullet(line string) bool {
	return bulletRe.MatchString(line)
}

// IsBlank reports whether line is empty or whitespace only.
func IsBlank(line string) bool {
	return blankRe.MatchString(line)
}

// Lines splits content on "\n". A trailing "\r" stays part of its line, so
// joining with "\n" restores the original bytes.
func Lines(content string) []string {
	return strings.Split(content, "\n")
}

// Join is the inverse of Lines.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}

// ToggleAt toggles line index of content. ok is false when the index is out
// of range or the line is not a checklist item; content is then returned as is.
func ToggleAt(content string, index int) (string, bool) {
	lines := Lines(content)
	if index < 0 || index >= len(lines) {
		return content, false
	}
	toggled, ok := Toggle(lines[index])
	if !ok {
		return content, false
	}
	lines[index] = toggled
	return Join(lines), true
}

// Progress counts the checked and total checklist items in content.
func Progress(content string) (done, total int) {
	for _, ln := range Lines(content) {
		l, ok := Parse(ln)
		if !ok {
			continue
		}
		total++
		if l.Checked {
			done++
		}
	}
	return done, total
}
