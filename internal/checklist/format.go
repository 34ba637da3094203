package checklist

const uncheckedPrefix = "- [ ] "

// FormatLine normalizes one line into checklist markup.
func FormatLine(line string) string {
	switch {
	case IsBlank(line):
		return ""
	case isItem(line):
		return line
	case IsBullet(line):
		return bulletRe.ReplaceAllLiteralString(line, uncheckedPrefix)
	default:
		return uncheckedPrefix + line
	}
}

// Format normalizes every line of text into checklist markup. Format is
// idempotent.
func Format(text string) string {
	lines := Lines(text)
	for i, ln := range lines {
		lines[i] = FormatLine(ln)
	}
	return Join(lines)
}

func isItem(line string) bool {
	_, ok := Parse(line)
	return ok
}
