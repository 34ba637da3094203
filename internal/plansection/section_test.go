package plansection

import (
	"strings"
	"testing"
	"time"
)

const note = "---\njournal: DailyNotes\njournal-date: 2025-01-01\n---\n\n# Plan\n\n- [ ] Buy milk\n- [x] Walk dog\n\n---\n\n# Log\nwoke up\n"

func TestExtract(t *testing.T) {
	if got := Extract(note); got != "- [ ] Buy milk\n- [x] Walk dog" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_NoHeading(t *testing.T) {
	if got := Extract("---\na: b\n---\n\n# Log\n- [ ] x\n"); got != "" {
		t.Errorf("Extract = %q, want empty", got)
	}
}

func TestExtract_LooseHeadingAndNoSeparator(t *testing.T) {
	text := "  #   Plan   \n\n\nfirst\n  second\n\n\n"
	if got := Extract(text); got != "first\n  second" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_IgnoresFrontmatterHeading(t *testing.T) {
	// A "# Plan" inside frontmatter is YAML, not the section.
	text := "---\nnote: |\n  # Plan\n---\n# Plan\n\nreal\n---\n"
	if got := Extract(text); got != "real" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_CRLF(t *testing.T) {
	text := "# Plan\r\n\r\n- [ ] a\r\n\r\n---\r\n"
	if got := Extract(text); got != "- [ ] a" {
		t.Errorf("Extract = %q", got)
	}
}

func TestBlock(t *testing.T) {
	cases := map[string]string{
		"":      "# Plan\n\n\n\n---\n",
		"a":     "# Plan\n\na\n\n---\n",
		"a\n":   "# Plan\n\na\n\n---\n",
		"\na\n": "# Plan\n\na\n\n---\n",
	}
	for in, want := range cases {
		if got := Block(in); got != want {
			t.Errorf("Block(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplace_ExistingSection(t *testing.T) {
	got := Replace(note, "- [x] Buy milk\n- [x] Walk dog")
	want := "---\njournal: DailyNotes\njournal-date: 2025-01-01\n---\n\n# Plan\n\n- [x] Buy milk\n- [x] Walk dog\n\n---\n\n# Log\nwoke up\n"
	if got != want {
		t.Errorf("Replace =\n%q\nwant\n%q", got, want)
	}
}

func TestReplace_InsertsAfterFrontmatter(t *testing.T) {
	text := "---\njournal: DailyNotes\n---\n# Log\nwoke up\n"
	got := Replace(text, "- [ ] a")
	want := "---\njournal: DailyNotes\n---\n# Plan\n\n- [ ] a\n\n---\n\n# Log\nwoke up\n"
	if got != want {
		t.Errorf("Replace =\n%q\nwant\n%q", got, want)
	}
}

func TestReplace_FreshTemplate(t *testing.T) {
	tpl, err := NewDailyNote("2025-01-01", "DailyNotes")
	if err != nil {
		t.Fatal(err)
	}
	got := Replace(tpl, "- [ ] a")
	if !strings.HasSuffix(got, "---\n# Plan\n\n- [ ] a\n\n---\n\n") {
		t.Errorf("Replace = %q", got)
	}
	if Extract(got) != "- [ ] a" {
		t.Errorf("Extract = %q", Extract(got))
	}
}

func TestReplace_NoFrontmatterNoHeading(t *testing.T) {
	if got := Replace("", "x"); got != "# Plan\n\nx\n\n---\n" {
		t.Errorf("empty note: %q", got)
	}
	if got := Replace("hello\n", "x"); got != "# Plan\n\nx\n\n---\n\nhello\n" {
		t.Errorf("plain note: %q", got)
	}
}

func TestReplace_UnterminatedFrontmatterLine(t *testing.T) {
	got := Replace("---\na: b\n---", "x")
	if got != "---\na: b\n---\n# Plan\n\nx\n\n---\n" {
		t.Errorf("Replace = %q", got)
	}
}

func TestReplace_Idempotent(t *testing.T) {
	texts := []string{
		note,
		"",
		"# Plan\n",
		"intro\n# Plan\nold\n---\ntail\n---\n",
		"---\na: 1\n---\nbody only\n",
		"---\r\na: 1\r\n---\r\n# Plan\r\n\r\nold\r\n---\r\nrest\r\n",
	}
	contents := []string{"", "- [ ] a", "a\n\nb\n", "\n\nleading"}
	for _, text := range texts {
		for _, c := range contents {
			once := Replace(text, c)
			twice := Replace(once, c)
			if once != twice {
				t.Errorf("Replace not idempotent for text %q content %q:\n once  %q\n twice %q", text, c, once, twice)
			}
		}
	}
}

func TestReplaceThenExtract(t *testing.T) {
	for _, c := range []string{"", "- [ ] a", "a\n\nb\n", "\n\nleading", "trailing   \n\n"} {
		got := Extract(Replace(note, c))
		want := strings.TrimRight(strings.TrimLeft(c, "\n"), " \n")
		if got != want {
			t.Errorf("round trip of %q = %q, want %q", c, got, want)
		}
	}
}

func TestReplace_KeepsOtherSections(t *testing.T) {
	text := "# Log\nline\n\n# Plan\nold\n---\n# Later\nmore\n"
	got := Replace(text, "new")
	if got != "# Log\nline\n\n# Plan\n\nnew\n\n---\n# Later\nmore\n" {
		t.Errorf("Replace = %q", got)
	}
}

func TestHasSeparator(t *testing.T) {
	if !HasSeparator("a\n  ---  \nb") {
		t.Error("separator line not detected")
	}
	if HasSeparator("a --- b\n----\n") {
		t.Error("inline dashes are not a separator")
	}
}

func TestNewDailyNote(t *testing.T) {
	text, err := NewDailyNote("2025-03-09", "DailyNotes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "---\n") || !strings.HasSuffix(text, "\n---\n\n") {
		t.Errorf("template = %q", text)
	}
	fm := Frontmatter(text)
	if fm["journal"] != "DailyNotes" {
		t.Errorf("journal = %v", fm["journal"])
	}
	switch d := fm["journal-date"].(type) {
	case time.Time:
		if d.Format("2006-01-02") != "2025-03-09" {
			t.Errorf("journal-date = %v", d)
		}
	case string:
		if d != "2025-03-09" {
			t.Errorf("journal-date = %q", d)
		}
	default:
		t.Errorf("journal-date has type %T", d)
	}
	if Extract(text) != "" {
		t.Error("fresh note has no plan")
	}
}

func TestFrontmatter_Absent(t *testing.T) {
	if fm := Frontmatter("# Plan\n\nx\n---\n"); fm != nil {
		t.Errorf("fm = %v", fm)
	}
	if fm := Frontmatter("---\n: bad: [\n---\n"); fm != nil {
		t.Errorf("invalid yaml should yield nil, got %v", fm)
	}
}
