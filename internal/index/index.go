package index

import "github.com/starford/planpanel/internal/plan"

// PlanIndex defines the interface for plan indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PlanIndex interface {
	UpsertPlan(r PlanRow) error
	DeletePlan(key plan.Key) error
	GetPlan(key plan.Key) (*PlanRow, error)
	ListPlans(limit, offset int) ([]PlanRow, int, error)
	AllChecksums() (map[plan.Key]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	RecordRevision(r Revision) (int64, error)
	Revisions(key plan.Key, limit int) ([]Revision, error)
	Close() error
}

// Verify *DB satisfies PlanIndex at compile time.
var _ PlanIndex = (*DB)(nil)
