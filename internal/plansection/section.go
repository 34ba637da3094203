// Package plansection reads and rewrites the "# Plan" section of a daily
// note. The section runs from the heading line to the next "---" line; YAML
// frontmatter at the top of the note is skipped.
package plansection

import (
	"regexp"
	"strings"
	"unicode"
)

const heading = "# Plan"

var (
	headingRe = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*Plan[ \t\r]*$`)
	sepRe     = regexp.MustCompile(`(?m)^[ \t]*---[ \t\r]*$`)
)

// frontmatterEnd returns the offset where the note body starts. The note has
// frontmatter only when its first non-empty line is "---" and a second "---"
// line closes it.
func frontmatterEnd(text string) int {
	lead := len(text) - len(strings.TrimLeft(text, "\r\n"))
	rest := text[lead:]
	open := sepRe.FindStringIndex(rest)
	if open == nil || open[0] != 0 {
		return 0
	}
	openEnd := lineEnd(rest, open[1])
	closing := sepRe.FindStringIndex(rest[openEnd:])
	if closing == nil {
		return 0
	}
	return lead + lineEnd(rest, openEnd+closing[1])
}

// lineEnd returns the offset just past the newline ending the line that
// contains offset i, or len(s) on the last line.
func lineEnd(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

// Extract returns the plan text of a note, without leading blank lines or
// trailing whitespace. A note without a "# Plan" heading has an empty plan.
func Extract(text string) string {
	body := text[frontmatterEnd(text):]
	loc := headingRe.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	after := body[loc[1]:]
	if sep := sepRe.FindStringIndex(after); sep != nil {
		after = after[:sep[0]]
	}
	return strings.TrimRightFunc(strings.TrimLeft(after, "\r\n"), unicode.IsSpace)
}

// Block renders content as a complete plan section, closing separator
// included.
func Block(content string) string {
	var b strings.Builder
	b.WriteString(heading + "\n")
	if !strings.HasPrefix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n---\n")
	return b.String()
}

// Replace returns text with its plan section replaced by content. When the
// note has no plan section one is inserted right after the frontmatter.
// Replace(Replace(t, c), c) == Replace(t, c).
func Replace(text, content string) string {
	block := Block(content)
	fm := frontmatterEnd(text)
	prefix, body := text[:fm], text[fm:]
	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}

	loc := headingRe.FindStringIndex(body)
	if loc == nil {
		glue := "\n"
		if body == "" || strings.HasPrefix(body, "\n") {
			glue = ""
		}
		return prefix + block + glue + body
	}

	end := len(body)
	if sep := sepRe.FindStringIndex(body[loc[1]:]); sep != nil {
		end = lineEnd(body, loc[1]+sep[1])
	}
	return prefix + body[:loc[0]] + block + body[end:]
}
