package api

import (
	"github.com/starford/planpanel/internal/index"
	"github.com/starford/planpanel/internal/planservice"
)

// SavePlanRequest is the request body of POST /planning. Content is a
// pointer so an explicit empty plan can be told apart from a missing field.
type SavePlanRequest struct {
	Date    string  `json:"date,omitempty" example:"2025-01-01"`
	Content *string `json:"content" example:"- [ ] Buy milk" validate:"required"`
}

// TogglePlanRequest is the request body of POST /planning/toggle.
type TogglePlanRequest struct {
	Date string `json:"date,omitempty" example:"2025-01-01"`
	Line *int   `json:"line" example:"0" validate:"required"`
}

// FormatPlanRequest is the request body of POST /planning/format.
type FormatPlanRequest struct {
	Date string `json:"date,omitempty" example:"2025-01-01"`
}

// PlanDetail is the full plan response type (aliased from the domain layer).
type PlanDetail = planservice.PlanDetail

// ToggleResponse wraps the plan after a toggle.
type ToggleResponse struct {
	Plan    *PlanDetail `json:"plan" validate:"required"`
	Toggled bool        `json:"toggled" validate:"required"`
}

// HistoryResponse wraps the save ledger of one day.
type HistoryResponse struct {
	Date      string           `json:"date" validate:"required"`
	Revisions []index.Revision `json:"revisions" validate:"required"`
}

// DaysResponse wraps paginated day listings.
type DaysResponse struct {
	Days  []index.PlanRow `json:"days" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
