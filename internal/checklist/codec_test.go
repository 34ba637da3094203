package checklist

import "testing"

func TestParse_Markers(t *testing.T) {
	cases := []struct {
		line    string
		ok      bool
		checked bool
		text    string
		indent  string
	}{
		{"- [ ] Buy milk", true, false, "Buy milk", ""},
		{"- [x] Walk dog", true, true, "Walk dog", ""},
		{"- [X] Shout", true, true, "Shout", ""},
		{"  -[ ]tight", true, false, "tight", "  "},
		{"\t-  [x]   spaced", true, true, "spaced", "\t"},
		{"- [ ] crlf\r", true, false, "crlf", ""},
		{"- [-] cancelled", false, false, "", ""},
		{"- [xx] double", false, false, "", ""},
		{"- [] empty", false, false, "", ""},
		{"* [ ] star", false, false, "", ""},
		{"Notes: remember milk", false, false, "", ""},
		{"- plain bullet", false, false, "", ""},
	}
	for _, c := range cases {
		l, ok := Parse(c.line)
		if ok != c.ok {
			t.Errorf("Parse(%q) ok = %v, want %v", c.line, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if l.Checked != c.checked || l.Text != c.text || l.Indent != c.indent {
			t.Errorf("Parse(%q) = %+v", c.line, l)
		}
		if l.String() != c.line {
			t.Errorf("String() = %q, want %q", l.String(), c.line)
		}
	}
}

func TestToggle_FlipsMarkerOnly(t *testing.T) {
	got, ok := Toggle("   -  [ ]  keep   spacing ")
	if !ok {
		t.Fatal("expected toggleable line")
	}
	if got != "   -  [x]  keep   spacing " {
		t.Errorf("toggled = %q", got)
	}
	got, _ = Toggle("- [X] loud")
	if got != "- [ ] loud" {
		t.Errorf("toggled = %q", got)
	}
}

func TestToggle_Involution(t *testing.T) {
	for _, line := range []string{
		"- [ ] a",
		"- [x] b",
		"    - [ ] nested",
		"-[x]no spaces",
		"- [ ] trailing\r",
	} {
		once, ok := Toggle(line)
		if !ok {
			t.Fatalf("Toggle(%q) not ok", line)
		}
		twice, _ := Toggle(once)
		if twice != line {
			t.Errorf("toggle twice %q -> %q", line, twice)
		}
	}
}

func TestToggle_UppercaseNormalizes(t *testing.T) {
	once, _ := Toggle("- [X] a")
	twice, _ := Toggle(once)
	if twice != "- [x] a" {
		t.Errorf("got %q", twice)
	}
}

func TestToggle_NotChecklist(t *testing.T) {
	line := "Notes: remember milk"
	got, ok := Toggle(line)
	if ok || got != line {
		t.Errorf("Toggle(%q) = %q, %v", line, got, ok)
	}
}

func TestToggleAt(t *testing.T) {
	content := "- [ ] Buy milk\n- [x] Walk dog"
	got, ok := ToggleAt(content, 0)
	if !ok {
		t.Fatal("expected toggle")
	}
	if got != "- [x] Buy milk\n- [x] Walk dog" {
		t.Errorf("got %q", got)
	}

	for _, idx := range []int{-1, 2, 100} {
		if out, ok := ToggleAt(content, idx); ok || out != content {
			t.Errorf("ToggleAt(%d) should be a no-op", idx)
		}
	}
}

func TestToggleAt_PreservesLineBreaks(t *testing.T) {
	content := "head\r\n- [ ] a\r\n\r\n- [x] b\n"
	got, ok := ToggleAt(content, 1)
	if !ok {
		t.Fatal("expected toggle")
	}
	if got != "head\r\n- [x] a\r\n\r\n- [x] b\n" {
		t.Errorf("got %q", got)
	}
}

func TestProgress(t *testing.T) {
	done, total := Progress("- [ ] a\n- [x] b\ntext\n- [X] c\n- [?] d")
	if done != 2 || total != 3 {
		t.Errorf("progress = %d/%d, want 2/3", done, total)
	}
}

func TestIsBullet(t *testing.T) {
	if !IsBullet("  - item") {
		t.Error("indented bullet not recognized")
	}
	if IsBullet("-item") {
		t.Error("bullet requires whitespace after dash")
	}
}
