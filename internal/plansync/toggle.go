package plansync

import (
	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/plan"
)

// ToggleLine is the first phase of an optimistic toggle: it flips the
// checklist marker of line index in the committed content, applies the result
// locally and returns the save request that commits it. SaveDone is the second
// phase, finalizing on success and refetching on failure.
//
// An out of range index or a line that is not a checklist item is a no-op:
// the state is returned unchanged with a nil Request and nil error.
func (s State) ToggleLine(index int) (State, *Request, error) {
	if s.session.Active {
		return s, nil, ErrEditing
	}
	content, ok := checklist.ToggleAt(s.doc.Content, index)
	if !ok {
		return s, nil, nil
	}
	if s.saving != 0 {
		return s, nil, ErrSaveInFlight
	}
	s.doc.Content = content
	s.doc.IsEmpty = plan.IsBlank(content)
	s, req := s.save(content, OriginToggle)
	return s, req, nil
}
