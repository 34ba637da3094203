package mcpserver

// ChecklistFormat describes how plans are stored and how LLM clients should
// write them.
const ChecklistFormat = `# Daily Plan Format

Each day has one plan: the text between the "# Plan" heading of the daily
note and the next "---" line. Tools read and write only that section; the
rest of the note is never touched.

## Lines

- Checklist item, open:    ` + "`- [ ] text`" + `
- Checklist item, done:    ` + "`- [x] text`" + ` (an upper-case X is accepted and read as done)
- Anything else is plain text. Blank lines are kept.

Only lines whose marker is exactly one space, x or X count as checklist
items; ` + "`- [] text`" + ` or ` + "`- [?] text`" + ` are plain text.

## Rules

1. A plan must not contain a line that is only ` + "`---`" + `; it would end the section.
2. Leading blank lines and trailing whitespace are trimmed when stored.
3. Lines are numbered from 0, counting blank lines. Use get_plan before
   toggle_task to find the right line.
4. format_plan turns every non-blank line into an open checklist item:
   ` + "`- text`" + ` becomes ` + "`- [ ] text`" + `, other text is prefixed with ` + "`- [ ] `" + `.
5. Pass the checksum from get_plan as if_match to save_plan to avoid
   overwriting a change made in the meantime.

## Example

` + "```" + `markdown
- [x] Morning run
- [ ] Review pull requests
  - [ ] planpanel
- [ ] Call the dentist

Notes: pick up parcel after 17:00
` + "```" + `
`
