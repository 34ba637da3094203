package plansection

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// HasSeparator reports whether content contains a line that would end the
// plan section early once written.
func HasSeparator(content string) bool {
	return sepRe.MatchString(content)
}

// NewDailyNote returns the initial text of a daily note for date: a
// frontmatter block naming the journal, followed by an empty line.
func NewDailyNote(date, journal string) (string, error) {
	// Plain scalars keep the date unquoted, the way the journal plugin
	// writes it.
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "journal"},
			{Kind: yaml.ScalarNode, Value: journal},
			{Kind: yaml.ScalarNode, Value: "journal-date"},
			{Kind: yaml.ScalarNode, Value: date},
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("plansection: render frontmatter: %w", err)
	}
	return "---\n" + string(out) + "---\n\n", nil
}

// Frontmatter decodes the YAML frontmatter of a note. A note without
// frontmatter, or with frontmatter that is not valid YAML, yields nil.
func Frontmatter(text string) map[string]any {
	end := frontmatterEnd(text)
	if end == 0 {
		return nil
	}
	block := text[:end]
	open := sepRe.FindStringIndex(block)
	openEnd := lineEnd(block, open[1])
	closing := sepRe.FindStringIndex(block[openEnd:])
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block[openEnd:openEnd+closing[0]]), &fm); err != nil {
		return nil
	}
	return fm
}
