// Package tui is the terminal planning panel: a bubbletea program over the
// plan sync engine.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/plansync"
)

const (
	flashTimeout     = 4 * time.Second
	defaultRollCheck = time.Minute
	// header, blank, blank, info bar (up to 3 lines), help
	chromeHeight = 7
)

// Engine is the sync engine the panel drives. *plansync.Store implements it.
type Engine interface {
	Snapshot() plansync.View
	Subscribe() chan plansync.View
	Refresh()
	SelectKey(key plan.Key) error
	BeginEdit() error
	UpdateDraft(text string) error
	FormatDraft() error
	Save() error
	Cancel(confirm bool) error
	ToggleLine(index int) error
}

var _ Engine = (*plansync.Store)(nil)

// Option configures the panel model.
type Option func(*Model)

// WithClock replaces time.Now for "today" and the midnight rollover.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDateOffset shifts which day counts as today.
func WithDateOffset(days int) Option {
	return func(m *Model) { m.offset = days }
}

// WithRefresh replaces the manual refresh action, usually with
// Scheduler.Trigger so manual and periodic refreshes coalesce.
func WithRefresh(fn func()) Option {
	return func(m *Model) {
		if fn != nil {
			m.refresh = fn
		}
	}
}

// WithRolloverCheck sets how often the panel checks whether the day changed.
func WithRolloverCheck(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.rollCheck = d
		}
	}
}

type (
	viewChangedMsg  struct{}
	engineClosedMsg struct{}
	rolloverTickMsg time.Time
)

// Model is the bubbletea model of the panel.
type Model struct {
	engine    Engine
	updates   chan plansync.View
	view      plansync.View
	keys      keyMap
	help      help.Model
	editor    textarea.Model
	spinner   spinner.Model
	now       func() time.Time
	offset    int
	refresh   func()
	rollCheck time.Duration

	// followToday moves the panel to the new day at midnight.
	followToday bool
	cursor      int
	top         int
	confirming  bool
	flash       string
	flashAt     time.Time
	width       int
	height      int
}

// New creates the panel model and subscribes to engine changes.
func New(engine Engine, opts ...Option) Model {
	ed := textarea.New()
	ed.CharLimit = 0
	ed.ShowLineNumbers = false
	ed.Placeholder = "Write your plan, one task per line"

	m := Model{
		engine:    engine,
		keys:      newKeyMap(),
		help:      help.New(),
		editor:    ed,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleMuted())),
		now:       time.Now,
		rollCheck: defaultRollCheck,
	}
	m.refresh = engine.Refresh
	for _, o := range opts {
		o(&m)
	}
	m.updates = engine.Subscribe()
	m.view = engine.Snapshot()
	m.followToday = m.view.Key == m.today()
	return m
}

func (m Model) today() plan.Key {
	return plan.KeyFor(m.now(), m.offset)
}

func waitForChange(ch chan plansync.View) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return engineClosedMsg{}
		}
		return viewChangedMsg{}
	}
}

func (m Model) rolloverTick() tea.Cmd {
	return tea.Tick(m.rollCheck, func(t time.Time) tea.Msg { return rolloverTickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.updates), m.rolloverTick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.editor.SetWidth(max(10, msg.Width-2))
		m.editor.SetHeight(max(3, msg.Height-chromeHeight))
		m.clampCursor()
		return m, nil

	case viewChangedMsg:
		// The channel value may be stale by now; the snapshot never is.
		m.sync()
		return m, waitForChange(m.updates)

	case engineClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rolloverTickMsg:
		m.checkRollover()
		m.expireFlash()
		return m, m.rolloverTick()

	case externalEditorDoneMsg:
		if msg.err != nil {
			m.showFlash("Editor failed: " + msg.err.Error())
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.view.Editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirming = false
			if err := m.engine.Cancel(true); err != nil {
				m.showError(err)
			}
			m.sync()
		case key.Matches(msg, m.keys.Deny):
			m.confirming = false
		}
		return m, nil
	}
	if m.view.Editing {
		return m.handleEditKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor--
	case key.Matches(msg, m.keys.Down):
		m.cursor++
	case key.Matches(msg, m.keys.Toggle):
		if err := m.engine.ToggleLine(m.cursor); err != nil {
			m.showError(err)
		}
	case key.Matches(msg, m.keys.Edit):
		if err := m.engine.BeginEdit(); err != nil {
			m.showError(err)
			break
		}
		m.sync()
		cmd := m.editor.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
	case key.Matches(msg, m.keys.PrevDay):
		m.selectKey(m.view.Key.Add(-1))
	case key.Matches(msg, m.keys.NextDay):
		m.selectKey(m.view.Key.Add(1))
	case key.Matches(msg, m.keys.Today):
		m.selectKey(m.today())
	case key.Matches(msg, m.keys.Open):
		cmd, err := openNote(m.view.Document.Path)
		if err != nil {
			m.showFlash(err.Error())
			break
		}
		return m, cmd
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	m.sync()
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.view.Saving {
		m.showFlash("Saving…")
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Save):
		m.pushDraft()
		if err := m.engine.Save(); err != nil {
			m.showError(err)
		}
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.Format):
		m.pushDraft()
		if err := m.engine.FormatDraft(); err != nil {
			m.showError(err)
		}
		m.sync()
		m.editor.SetValue(m.view.Draft)
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.pushDraft()
		err := m.engine.Cancel(false)
		switch {
		case errors.Is(err, plansync.ErrUnconfirmedDiscard):
			m.confirming = true
		case err != nil:
			m.showError(err)
		}
		m.sync()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.pushDraft()
	return m, cmd
}

// pushDraft hands the editor text to the engine when it changed.
func (m *Model) pushDraft() {
	text := m.editor.Value()
	if text == m.view.Draft {
		return
	}
	if err := m.engine.UpdateDraft(text); err != nil {
		m.showError(err)
		return
	}
	m.view.Draft = text
	m.view.Dirty = text != m.view.Document.Content
}

func (m *Model) selectKey(k plan.Key) {
	if err := m.engine.SelectKey(k); err != nil {
		m.showError(err)
		return
	}
	m.followToday = k == m.today()
	m.cursor, m.top = 0, 0
}

// checkRollover follows today across midnight unless the user is editing.
func (m *Model) checkRollover() {
	today := m.today()
	if !m.followToday || m.view.Key == today || m.view.Editing {
		return
	}
	if err := m.engine.SelectKey(today); err != nil {
		return
	}
	m.cursor, m.top = 0, 0
	m.sync()
}

// sync pulls the latest engine view into the model.
func (m *Model) sync() {
	m.apply(m.engine.Snapshot())
}

func (m *Model) apply(v plansync.View) {
	wasEditing := m.view.Editing
	m.view = v
	switch {
	case v.Editing && !wasEditing:
		m.editor.SetValue(v.Draft)
	case !v.Editing && wasEditing:
		m.editor.Blur()
		m.confirming = false
	}
	m.clampCursor()
}

func (m *Model) lineCount() int {
	if plan.IsBlank(m.view.Document.Content) {
		return 0
	}
	return len(checklist.Lines(m.view.Document.Content))
}

func (m *Model) bodyHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(1, m.height-chromeHeight)
}

func (m *Model) clampCursor() {
	n := m.lineCount()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	h := m.bodyHeight()
	if h == 0 {
		m.top = 0
		return
	}
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+h {
		m.top = m.cursor - h + 1
	}
}

func (m *Model) showFlash(text string) {
	m.flash = text
	m.flashAt = m.now()
}

func (m *Model) showError(err error) {
	switch {
	case errors.Is(err, plansync.ErrUnsavedDraft):
		m.showFlash("Save or cancel your edit first")
	case errors.Is(err, plansync.ErrSaveInFlight):
		m.showFlash("Still saving, try again in a moment")
	case errors.Is(err, plansync.ErrNotLoaded):
		m.showFlash("Plan not loaded yet")
	case errors.Is(err, plansync.ErrEditing):
		m.showFlash("Finish editing first")
	default:
		m.showFlash(err.Error())
	}
}

func (m *Model) expireFlash() {
	if m.flash != "" && m.now().Sub(m.flashAt) >= flashTimeout {
		m.flash = ""
	}
}

// Run starts the panel full screen and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, engine Engine, opts ...Option) error {
	applyColorProfile()
	m := New(engine, opts...)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
