package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/planpanel/internal/planservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *planservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *planservice.Service) *Handler {
	return &Handler{svc: svc}
}

func setETag(w http.ResponseWriter, p *PlanDetail) {
	w.Header().Set("ETag", strconv.Quote(p.Checksum))
}

// GetPlan handles GET /planning.
//
//	@Summary		Get the plan of one day
//	@Tags			planning
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD), today when omitted"
//	@Success		200		{object}	PlanDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Router			/planning [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.ResolveKey(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, "resolve date", err)
		return
	}
	p, err := h.svc.Get(r.Context(), key)
	if err != nil {
		writeError(w, "get plan", err, slog.String("date", key.String()))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// SavePlan handles POST /planning.
//
//	@Summary		Replace the plan of one day
//	@Tags			planning
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string			false	"Plan checksum for optimistic concurrency"
//	@Param			body		body	SavePlanRequest	true	"Plan to store"
//	@Success		200		{object}	PlanDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/planning [post]
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SavePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	key, err := h.svc.ResolveKey(req.Date)
	if err != nil {
		writeError(w, "resolve date", err)
		return
	}

	p, err := h.svc.Save(r.Context(), key, *req.Content, r.Header.Get("If-Match"), planservice.SourceAPI)
	if err != nil {
		writeError(w, "save plan", err, slog.String("date", key.String()))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// TogglePlan handles POST /planning/toggle.
//
//	@Summary		Toggle one checklist line of a plan
//	@Tags			planning
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TogglePlanRequest	true	"Line to toggle"
//	@Success		200		{object}	ToggleResponse
//	@Failure		400		{object}	errResponse
//	@Router			/planning/toggle [post]
func (h *Handler) TogglePlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req TogglePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Line == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("line is required"))
		return
	}
	key, err := h.svc.ResolveKey(req.Date)
	if err != nil {
		writeError(w, "resolve date", err)
		return
	}

	p, ok, err := h.svc.Toggle(r.Context(), key, *req.Line, planservice.SourceAPI)
	if err != nil {
		writeError(w, "toggle plan", err, slog.String("date", key.String()), slog.Int("line", *req.Line))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, ToggleResponse{Plan: p, Toggled: ok})
}

// FormatPlan handles POST /planning/format.
//
//	@Summary		Turn every line of a plan into a checklist item
//	@Tags			planning
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FormatPlanRequest	false	"Day to format"
//	@Success		200		{object}	PlanDetail
//	@Router			/planning/format [post]
func (h *Handler) FormatPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req FormatPlanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	key, err := h.svc.ResolveKey(req.Date)
	if err != nil {
		writeError(w, "resolve date", err)
		return
	}
	p, err := h.svc.Format(r.Context(), key, planservice.SourceAPI)
	if err != nil {
		writeError(w, "format plan", err, slog.String("date", key.String()))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// History handles GET /planning/history.
//
//	@Summary		List accepted saves of one day, newest first
//	@Tags			planning
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD), today when omitted"
//	@Param			limit	query		int		false	"Max entries"
//	@Success		200		{object}	HistoryResponse
//	@Router			/planning/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := h.svc.ResolveKey(q.Get("date"))
	if err != nil {
		writeError(w, "resolve date", err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	revs, err := h.svc.History(r.Context(), key, limit)
	if err != nil {
		writeError(w, "plan history", err, slog.String("date", key.String()))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Date: key.String(), Revisions: revs})
}

// Days handles GET /planning/days.
//
//	@Summary		List days that have a daily note, newest first
//	@Tags			planning
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DaysResponse
//	@Router			/planning/days [get]
func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, "list days", err)
		return
	}
	writeJSON(w, http.StatusOK, DaysResponse{Days: rows, Total: total})
}

// Search handles GET /planning/search.
//
//	@Summary		Full-text search across plans
//	@Tags			planning
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/planning/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
