/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List employee IDs with current profile
    POST   /api/employees                       Create first profile version
    GET    /api/employees/{id}                  Current profile (as_of optional)
    GET    /api/employees/{id}/history          All profile versions
    POST   /api/employees/{id}/compensation     Append a new profile version
    GET    /api/employees/{id}/ytd              Year-to-date totals

  Runs:
    POST   /api/runs                            Compute a payroll run
    GET    /api/runs                            List runs
    GET    /api/runs/{id}                       Run with records
    POST   /api/runs/{id}/recompute             Recompute employees on a draft run
    POST   /api/runs/{id}/approve               Approve (commits the ledger)
    POST   /api/runs/{id}/pay                   Mark paid
    GET    /api/runs/{id}/export                CSV payroll register

  Rule sets:
    GET    /api/rulesets?province=&date=        Resolve or list rule sets

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Run/profile/rule set not found
  - 409: Concurrent modification, transition conflicts, unresolved failures
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payrun"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Profiles     employee.ProfileStore
	Rules        *jurisdiction.Table
	Ledger       *ledger.Ledger
	Runs         payrun.RunStore
	Orchestrator *payrun.Orchestrator
}

func NewHandler(profiles employee.ProfileStore, rules *jurisdiction.Table, led *ledger.Ledger, runs payrun.RunStore) *Handler {
	return &Handler{
		Profiles:     profiles,
		Rules:        rules,
		Ledger:       led,
		Runs:         runs,
		Orchestrator: payrun.NewOrchestrator(profiles, rules, led, runs),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns each employee's current profile.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Profiles.ListIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	now := time.Now().UTC()
	dtos := make([]ProfileDTO, 0, len(ids))
	for _, id := range ids {
		p, err := h.Profiles.CurrentAt(r.Context(), id, now)
		if err != nil {
			// No version effective today (e.g. future hire); fall back to
			// the latest version so the employee still lists.
			history, herr := h.Profiles.History(r.Context(), id)
			if herr != nil || len(history) == 0 {
				continue
			}
			p = history[len(history)-1]
		}
		dtos = append(dtos, profileDTO(p))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee appends the first profile version for a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	profile, err := req.toProfile()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}

	if err := h.Profiles.Append(r.Context(), profile); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profileDTO(profile))
}

// GetEmployee returns the profile effective on as_of (default today).
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := employee.ID(chi.URLParam(r, "id"))

	asOf := time.Now().UTC()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = time.Parse(dateLayout, s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
			return
		}
	}

	p, err := h.Profiles.CurrentAt(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileDTO(p))
}

// GetEmployeeHistory returns every profile version, oldest first.
func (h *Handler) GetEmployeeHistory(w http.ResponseWriter, r *http.Request) {
	id := employee.ID(chi.URLParam(r, "id"))

	history, err := h.Profiles.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	if len(history) == 0 {
		writeDomainError(w, &employee.ProfileNotFoundError{EmployeeID: id, AsOf: time.Now().UTC()})
		return
	}

	dtos := make([]ProfileDTO, len(history))
	for i, p := range history {
		dtos[i] = profileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AppendCompensation appends a new effective-dated profile version.
func (h *Handler) AppendCompensation(w http.ResponseWriter, r *http.Request) {
	id := employee.ID(chi.URLParam(r, "id"))

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	req.EmployeeID = string(id)

	profile, err := req.toProfile()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}

	if err := h.Profiles.Append(r.Context(), profile); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profileDTO(profile))
}

// GetEmployeeYTD returns committed year-to-date totals as of a date.
func (h *Handler) GetEmployeeYTD(w http.ResponseWriter, r *http.Request) {
	id := employee.ID(chi.URLParam(r, "id"))

	year := time.Now().UTC().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		var err error
		if year, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}

	// Default: everything committed for the year.
	asOf := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = time.Parse(dateLayout, s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
			return
		}
	}

	ytd, err := h.Ledger.YTDBefore(r.Context(), id, year, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load YTD", err)
		return
	}

	writeJSON(w, http.StatusOK, ytdDTO(ytd))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun computes a payroll run from submitted period inputs.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	inputs, err := req.toInputs()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run request", err)
		return
	}

	run, err := h.Orchestrator.RunPayroll(r.Context(), req.PayGroup, inputs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, runDTO(run, true))
}

// ListRuns returns all runs without their records.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Runs.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = runDTO(run, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a run with its records.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runs.GetRun(r.Context(), payroll.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run, true))
}

// RecomputeRun recomputes the named employees on a not-yet-approved run.
func (h *Handler) RecomputeRun(w http.ResponseWriter, r *http.Request) {
	runID := payroll.RunID(chi.URLParam(r, "id"))

	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version", err)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	inputs, err := req.toInputs()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run request", err)
		return
	}

	run, err := h.Orchestrator.Recompute(r.Context(), runID, version, inputs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run, true))
}

// ApproveRun approves a run, committing it to the YTD ledger.
func (h *Handler) ApproveRun(w http.ResponseWriter, r *http.Request) {
	runID := payroll.RunID(chi.URLParam(r, "id"))

	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version", err)
		return
	}

	run, err := h.Orchestrator.Approve(r.Context(), runID, version)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run, false))
}

// PayRun marks an approved run paid.
func (h *Handler) PayRun(w http.ResponseWriter, r *http.Request) {
	runID := payroll.RunID(chi.URLParam(r, "id"))

	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version", err)
		return
	}

	run, err := h.Orchestrator.MarkPaid(r.Context(), runID, version)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run, false))
}

// expectedVersion reads the optimistic concurrency version from the
// If-Match header, falling back to the version query parameter.
func expectedVersion(r *http.Request) (int, error) {
	s := r.Header.Get("If-Match")
	if s == "" {
		s = r.URL.Query().Get("version")
	}
	return strconv.Atoi(s)
}

// =============================================================================
// RULE SET HANDLERS
// =============================================================================

// GetRuleSets resolves a rule set for province+date, or lists the
// published sets for a province.
func (h *Handler) GetRuleSets(w http.ResponseWriter, r *http.Request) {
	province := jurisdiction.Province(r.URL.Query().Get("province"))
	if !province.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid or missing province", nil)
		return
	}

	if s := r.URL.Query().Get("date"); s != "" {
		date, err := time.Parse(dateLayout, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		rs, err := h.Rules.Resolve(province, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ruleSetDTO(rs))
		return
	}

	sets := h.Rules.List(province)
	dtos := make([]RuleSetDTO, len(sets))
	for i, rs := range sets {
		dtos[i] = ruleSetDTO(rs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payrun.ErrRunNotFound),
		errors.Is(err, employee.ErrProfileNotFound),
		errors.Is(err, jurisdiction.ErrRuleSetNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, payrun.ErrConcurrentModification),
		errors.Is(err, payrun.ErrInvalidTransition),
		errors.Is(err, payrun.ErrRunHasFailures):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, payroll.ErrInvalidPayrollInput),
		errors.Is(err, employee.ErrInvalidProfile),
		errors.Is(err, jurisdiction.ErrOverlappingRuleSets):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
