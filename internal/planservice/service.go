// Package planservice reads and writes the plan section of daily notes,
// keeping the index, the revision ledger and subscribers in step with disk.
package planservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/checksum"
	"github.com/starford/planpanel/internal/index"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/plansection"
	"github.com/starford/planpanel/internal/storage"
)

// Save sources recorded in the revision ledger.
const (
	SourceAPI = "api"
	SourceMCP = "mcp"
	SourceCLI = "cli"
)

// PlanDetail is the full representation of one day's plan.
type PlanDetail struct {
	plan.Document
	Checksum    string         `json:"checksum"`
	Done        int            `json:"done"`
	Total       int            `json:"total"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Publisher receives plan change notifications.
type Publisher interface {
	PublishPlanEvent(kind string, key plan.Key)
}

// Committer records a saved note in version control.
type Committer interface {
	Enqueue(path, message string)
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the change publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithCommitter sets the version-control committer.
func WithCommitter(c Committer) Option {
	return func(s *Service) { s.git = c }
}

// WithJournal sets the journal name written into new notes' frontmatter.
func WithJournal(name string) Option {
	return func(s *Service) { s.journal = name }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates storage and index operations.
type Service struct {
	store   storage.Provider
	db      index.PlanIndex
	journal string
	pub     Publisher
	git     Committer
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new plan service.
func NewService(store storage.Provider, db index.PlanIndex, opts ...Option) *Service {
	s := &Service{
		store:   store,
		db:      db,
		journal: storage.DefaultDailyDir,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today returns the key of the current local day shifted by offsetDays.
func (s *Service) Today(offsetDays int) plan.Key {
	return plan.KeyFor(s.now(), offsetDays)
}

// ResolveKey parses raw as a date; an empty string means today.
func (s *Service) ResolveKey(raw string) (plan.Key, error) {
	if raw == "" {
		return s.Today(0), nil
	}
	key, err := plan.ParseKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return key, nil
}

// Get returns the plan for key. A missing note yields an empty plan with
// Exists false.
func (s *Service) Get(_ context.Context, key plan.Key) (*PlanDetail, error) {
	path, err := s.store.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(key)
	if errors.Is(err, apperr.ErrNotFound) {
		doc := plan.Missing(key)
		doc.Path = path
		return &PlanDetail{Document: doc, Checksum: checksum.String("")}, nil
	}
	if err != nil {
		return nil, err
	}
	return buildDetail(key, path, string(data)), nil
}

// Save replaces the plan for key with content. A missing note is created
// from the daily template first. When ifMatch is non-empty it must match the
// checksum of the current plan or apperr.ErrConflict is returned. The file
// is rewritten only if its text changes.
func (s *Service) Save(ctx context.Context, key plan.Key, content, ifMatch, source string) (*PlanDetail, error) {
	if plansection.HasSeparator(content) {
		return nil, fmt.Errorf("%w: plan must not contain a --- line", apperr.ErrInvalidInput)
	}
	path, err := s.store.Path(key)
	if err != nil {
		return nil, err
	}

	unlock := s.store.Lock(key)
	defer unlock()

	var text string
	existed := true
	data, err := s.store.Read(key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		existed = false
		text, err = plansection.NewDailyNote(key.String(), s.journal)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		text = string(data)
	}

	if ifMatch != "" && !checksum.Match(ifMatch, plansection.Extract(text)) {
		return nil, apperr.ErrConflict
	}

	updated := plansection.Replace(text, content)
	if existed && updated == text {
		return buildDetail(key, path, text), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.Write(key, []byte(updated)); err != nil {
		return nil, err
	}
	detail := buildDetail(key, path, updated)
	s.afterWrite(key, path, updated, detail, existed, source)
	return detail, nil
}

// afterWrite updates the index and ledger and notifies collaborators. The
// note is already on disk; failures here are logged, not returned.
func (s *Service) afterWrite(key plan.Key, path, text string, detail *PlanDetail, existed bool, source string) {
	now := s.now()
	if err := index.IndexNote(s.db, key, path, []byte(text), now); err != nil {
		s.logger.Warn("planservice: index failed", slog.String("date", key.String()), slog.String("error", err.Error()))
	}
	if _, err := s.db.RecordRevision(index.Revision{
		Key:      key,
		Checksum: detail.Checksum,
		Content:  detail.Content,
		Source:   source,
		SavedAt:  now,
	}); err != nil {
		s.logger.Warn("planservice: record revision failed", slog.String("date", key.String()), slog.String("error", err.Error()))
	}

	kind := "updated"
	if !existed {
		kind = "created"
	}
	s.logger.Info("planservice: saved",
		slog.String("date", key.String()),
		slog.String("op", kind),
		slog.String("source", source),
		slog.Int("done", detail.Done),
		slog.Int("total", detail.Total))

	if s.pub != nil {
		s.pub.PublishPlanEvent(kind, key)
	}
	if s.git != nil {
		s.git.Enqueue(path, fmt.Sprintf("plan: %s (%s)", key, source))
	}
}

// Toggle flips the checklist item at line of the plan for key. ok is false
// when the line is out of range or not a checklist item; nothing is written
// then.
func (s *Service) Toggle(ctx context.Context, key plan.Key, line int, source string) (detail *PlanDetail, ok bool, err error) {
	cur, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	next, ok := checklist.ToggleAt(cur.Content, line)
	if !ok {
		return cur, false, nil
	}
	detail, err = s.Save(ctx, key, next, cur.Checksum, source)
	if err != nil {
		return nil, false, err
	}
	return detail, true, nil
}

// Format rewrites every non-blank line of the plan for key as a checklist
// item. An already formatted plan is left untouched.
func (s *Service) Format(ctx context.Context, key plan.Key, source string) (*PlanDetail, error) {
	cur, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	formatted := checklist.Format(cur.Content)
	if formatted == cur.Content {
		return cur, nil
	}
	return s.Save(ctx, key, formatted, cur.Checksum, source)
}

// History returns the newest saves of key first.
func (s *Service) History(_ context.Context, key plan.Key, limit int) ([]index.Revision, error) {
	revs, err := s.db.Revisions(key, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(revs), nil
}

// List returns indexed days newest first with their progress.
func (s *Service) List(_ context.Context, limit, offset int) ([]index.PlanRow, int, error) {
	rows, total, err := s.db.ListPlans(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(rows), total, nil
}

// Search delegates full-text search over plans to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// buildDetail constructs a PlanDetail from the raw note text without
// re-reading the file.
func buildDetail(key plan.Key, path, text string) *PlanDetail {
	content := plansection.Extract(text)
	done, total := checklist.Progress(content)
	return &PlanDetail{
		Document: plan.Document{
			Key:     key,
			Content: content,
			Path:    path,
			Exists:  true,
			IsEmpty: plan.IsBlank(content),
		},
		Checksum:    checksum.String(content),
		Done:        done,
		Total:       total,
		Frontmatter: plansection.Frontmatter(text),
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
