// Package plansync keeps a local view of one remote plan document in sync
// with the remote store while the user edits it.
//
// State is a pure value: every transition returns the next State plus, when
// the remote store must be called, a Request describing that call. Store is
// the driver that executes requests and feeds their results back.
package plansync

import (
	"time"

	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/plan"
)

// Phase is the coarse lifecycle state of the document.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseLoadFailed
	PhaseEditing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseLoadFailed:
		return "load_failed"
	case PhaseEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// Op is the remote operation a Request asks for.
type Op int

const (
	OpFetch Op = iota + 1
	OpSave
)

func (o Op) String() string {
	switch o {
	case OpFetch:
		return "fetch"
	case OpSave:
		return "save"
	default:
		return "unknown"
	}
}

// Origin tells which intent produced a save.
type Origin int

const (
	OriginNone Origin = iota
	OriginToggle
	OriginSession
)

// Request describes one remote call. ID grows monotonically per State and Key
// is the document key the call was issued for; results are matched against
// both.
type Request struct {
	ID      uint64
	Op      Op
	Key     plan.Key
	Content string
	Origin  Origin
}

// EditSession holds the local draft while the user edits.
type EditSession struct {
	Active bool
	Draft  string
}

// View is a read-only snapshot of the state for rendering.
type View struct {
	Key      plan.Key
	Phase    Phase
	Document plan.Document
	Status   plan.Status
	Editing  bool
	// Draft equals Document.Content when not editing.
	Draft  string
	Dirty  bool
	Saving bool
}

// State is the document, its sync status and the edit session for the
// active key.
type State struct {
	key     plan.Key
	doc     plan.Document
	status  plan.Status
	session EditSession

	hasDoc     bool
	loadFailed bool

	nextID uint64
	// fetching is the id of the outstanding fetch, 0 when none.
	fetching uint64
	// reconciling marks the outstanding fetch as the refetch after a failed
	// save, which must keep the save error visible.
	reconciling bool
	// overlapsSave marks the outstanding fetch as issued while a save for the
	// key was in flight; its content predates or races that save.
	overlapsSave bool

	saving       uint64
	savingKey    plan.Key
	savingOrigin Origin
	lastSaveID   uint64
}

// New returns the idle state for key.
func New(key plan.Key) State {
	return State{key: key, doc: plan.Missing(key)}
}

func (s State) Key() plan.Key { return s.key }
func (s State) Document() plan.Document { return s.doc }
func (s State) Status() plan.Status { return s.status }
func (s State) Session() EditSession { return s.session }
func (s State) Saving() bool { return s.saving != 0 }
func (s State) Fetching() bool { return s.fetching != 0 }

// Dirty reports whether an active draft differs from the committed content.
func (s State) Dirty() bool {
	return s.session.Active && s.session.Draft != s.doc.Content
}

// Phase derives the lifecycle phase from the state.
func (s State) Phase() Phase {
	switch {
	case s.session.Active:
		return PhaseEditing
	case s.hasDoc:
		return PhaseLoaded
	case s.fetching != 0:
		return PhaseLoading
	case s.loadFailed:
		return PhaseLoadFailed
	default:
		return PhaseIdle
	}
}

// View returns a snapshot of s.
func (s State) View() View {
	v := View{
		Key:      s.key,
		Phase:    s.Phase(),
		Document: s.doc,
		Status:   s.status,
		Editing:  s.session.Active,
		Draft:    s.doc.Content,
		Dirty:    s.Dirty(),
		Saving:   s.saving != 0,
	}
	if s.session.Active {
		v.Draft = s.session.Draft
	}
	return v
}

// Refresh requests a fetch of the active key. It is coalesced into the
// outstanding fetch when there is one and then returns a nil Request.
func (s State) Refresh() (State, *Request) {
	if s.fetching != 0 {
		return s, nil
	}
	return s.fetch(false)
}

func (s State) fetch(reconcile bool) (State, *Request) {
	if !reconcile {
		s.status.Error = ""
	}
	if !s.savingActiveKey() {
		s.status.Loading = true
	}
	s.nextID++
	s.fetching = s.nextID
	s.reconciling = reconcile
	s.overlapsSave = s.savingActiveKey()
	return s, &Request{ID: s.fetching, Op: OpFetch, Key: s.key}
}

func (s State) savingActiveKey() bool {
	return s.saving != 0 && s.savingKey == s.key
}

// FetchDone applies the result of a fetch. Results for a superseded fetch or
// another key are discarded. Content is left alone while a save for the key
// is in flight, and when the fetch was issued before or during the latest
// save; the draft is never touched.
func (s State) FetchDone(req Request, doc plan.Document, err error) State {
	if req.Op != OpFetch || req.ID != s.fetching || req.Key != s.key {
		return s
	}
	s.fetching = 0
	s.status.Loading = false
	reconcile := s.reconciling
	s.reconciling = false
	overlapped := s.overlapsSave
	s.overlapsSave = false

	locked := s.savingActiveKey() || req.ID < s.lastSaveID || overlapped
	if err != nil {
		s.status.Error = err.Error()
		if !locked {
			s.doc = plan.Missing(s.key)
			s.hasDoc = false
			s.loadFailed = true
		}
		return s
	}

	if locked {
		s.doc.Path = doc.Path
		s.doc.Exists = doc.Exists
	} else {
		doc.Key = s.key
		s.doc = doc
		s.hasDoc = true
		s.loadFailed = false
	}
	if !reconcile {
		s.status.Error = ""
	}
	return s
}

// BeginEdit starts an edit session with the committed content as draft.
func (s State) BeginEdit() (State, error) {
	if s.session.Active {
		return s, ErrAlreadyEditing
	}
	if !s.hasDoc {
		return s, ErrNotLoaded
	}
	if s.saving != 0 {
		return s, ErrSaveInFlight
	}
	s.session = EditSession{Active: true, Draft: s.doc.Content}
	return s, nil
}

// UpdateDraft replaces the draft text.
func (s State) UpdateDraft(text string) (State, error) {
	if !s.session.Active {
		return s, ErrNotEditing
	}
	s.session.Draft = text
	return s, nil
}

// FormatDraft rewrites every line of the draft as a checklist item.
func (s State) FormatDraft() (State, error) {
	if !s.session.Active {
		return s, ErrNotEditing
	}
	s.session.Draft = checklist.Format(s.session.Draft)
	return s, nil
}

// Save requests a save of the draft. The session stays active until the save
// succeeds.
func (s State) Save() (State, *Request, error) {
	if !s.session.Active {
		return s, nil, ErrNotEditing
	}
	if s.saving != 0 {
		return s, nil, ErrSaveInFlight
	}
	s, req := s.save(s.session.Draft, OriginSession)
	return s, req, nil
}

func (s State) save(content string, origin Origin) (State, *Request) {
	s.status.Error = ""
	s.nextID++
	s.saving = s.nextID
	s.savingKey = s.key
	s.savingOrigin = origin
	s.lastSaveID = s.nextID
	return s, &Request{ID: s.saving, Op: OpSave, Key: s.key, Content: content, Origin: origin}
}

// SaveDone applies the result of a save. On success the persisted document
// becomes the committed content and a session save ends the session. On
// failure the error is recorded, the draft kept and a refetch requested to
// restore the remote truth.
func (s State) SaveDone(req Request, doc plan.Document, err error, at time.Time) (State, *Request) {
	if req.Op != OpSave || req.ID != s.saving {
		return s, nil
	}
	origin := s.savingOrigin
	s.saving = 0
	s.savingKey = ""
	s.savingOrigin = OriginNone
	if req.Key != s.key {
		return s, nil
	}

	if err != nil {
		s.status.Error = err.Error()
		return s.fetch(true)
	}

	s.status.LastSavedAt = at
	s.doc.Content = doc.Content
	s.doc.IsEmpty = plan.IsBlank(doc.Content)
	s.doc.Exists = true
	if doc.Path != "" {
		s.doc.Path = doc.Path
	}
	s.hasDoc = true
	s.loadFailed = false
	if origin == OriginSession {
		s.session = EditSession{}
	}
	return s, nil
}

// Cancel ends the edit session. A dirty draft is only discarded when confirm
// is true.
func (s State) Cancel(confirm bool) (State, error) {
	if !s.session.Active {
		return s, ErrNotEditing
	}
	if s.saving != 0 && s.savingOrigin == OriginSession {
		return s, ErrSaveInFlight
	}
	if s.Dirty() && !confirm {
		return s, ErrUnconfirmedDiscard
	}
	s.session = EditSession{}
	return s, nil
}

// SelectKey switches to another document key and requests its fetch. Any
// response still outstanding for the previous key is discarded when it lands.
func (s State) SelectKey(key plan.Key) (State, *Request, error) {
	if s.Dirty() {
		return s, nil, ErrUnsavedDraft
	}
	if key == s.key {
		st, req := s.Refresh()
		return st, req, nil
	}
	s.key = key
	s.doc = plan.Missing(key)
	s.status = plan.Status{}
	s.session = EditSession{}
	s.hasDoc = false
	s.loadFailed = false
	s.fetching = 0
	s.reconciling = false
	s.overlapsSave = false
	st, req := s.fetch(false)
	return st, req, nil
}
