package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST SERVER
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	profiles := memory.NewProfileStore()
	runs := memory.NewRunStore()
	led := ledger.New(memory.NewLedgerStore())
	h := NewHandler(profiles, jurisdiction.PublishedTable(), led, runs)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(h, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func salariedRequest(id string) ProfileRequest {
	return ProfileRequest{
		EmployeeID: id,
		Name:       "Avery Chen",
		Province:   "ON",
		Frequency:  "biweekly",
		Compensation: CompensationDTO{
			Kind:         "salary",
			AnnualSalary: "62400",
		},
		EffectiveFrom: "2024-01-01",
	}
}

func biweeklyRunRequest(payDate string, ids ...string) RunRequest {
	req := RunRequest{
		PayGroup:    "ontario-biweekly",
		PeriodStart: "2025-06-01",
		PeriodEnd:   "2025-06-14",
		PayDate:     payDate,
	}
	for _, id := range ids {
		req.Inputs = append(req.Inputs, PeriodInputDTO{EmployeeID: id})
	}
	return req
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestAPI_CreateAndGetEmployee(t *testing.T) {
	srv := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-001"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created ProfileDTO
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "emp-001", created.EmployeeID)
	assert.Equal(t, "62400.00", created.Compensation.AnnualSalary)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-001", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got ProfileDTO
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "ON", got.Province)
	assert.Equal(t, "biweekly", got.Frequency)
}

func TestAPI_CreateEmployeeRejectsBadProfile(t *testing.T) {
	srv := newTestServer(t)

	bad := salariedRequest("emp-001")
	bad.Province = "XX"
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/employees", bad, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
}

func TestAPI_CompensationHistoryIsEffectiveDated(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-001"), nil)

	// A raise effective mid-2025 becomes a second version.
	raise := salariedRequest("emp-001")
	raise.Compensation.AnnualSalary = "70000"
	raise.EffectiveFrom = "2025-07-01"
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-001/compensation", raise, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	// as_of before the raise sees the old salary.
	_, raw = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-001?as_of=2025-06-13", nil, nil)
	var before ProfileDTO
	require.NoError(t, json.Unmarshal(raw, &before))
	assert.Equal(t, "62400.00", before.Compensation.AnnualSalary)

	// as_of after sees the raise.
	_, raw = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-001?as_of=2025-07-11", nil, nil)
	var after ProfileDTO
	require.NoError(t, json.Unmarshal(raw, &after))
	assert.Equal(t, "70000.00", after.Compensation.AnnualSalary)

	_, raw = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-001/history", nil, nil)
	var history []ProfileDTO
	require.NoError(t, json.Unmarshal(raw, &history))
	assert.Len(t, history, 2)
	assert.Equal(t, "2025-06-30", history[0].EffectiveTo, "previous version closed at day before the raise")
}

func TestAPI_GetUnknownEmployeeIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/employees/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// RUN LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_RunLifecycle(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-001"), nil)

	// Create the run.
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/runs", biweeklyRunRequest("2025-06-13", "emp-001"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var run RunDTO
	require.NoError(t, json.Unmarshal(raw, &run))
	assert.Equal(t, "pending_approval", run.Status)
	require.Len(t, run.Records, 1)
	assert.Equal(t, "2400.00", run.Records[0].Earnings.Total)
	assert.Equal(t, "1862.46", run.Records[0].NetPay)
	assert.Equal(t, "ON-2025-01-01", run.Records[0].RuleSetID)

	// Approve with the version in If-Match.
	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+run.ID+"/approve", nil,
		map[string]string{"If-Match": strconv.Itoa(run.Version)})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var approved RunDTO
	require.NoError(t, json.Unmarshal(raw, &approved))
	assert.Equal(t, "approved", approved.Status)
	assert.NotEmpty(t, approved.ApprovedAt)

	// A stale approve retry conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+run.ID+"/approve", nil,
		map[string]string{"If-Match": strconv.Itoa(run.Version)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Pay.
	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+run.ID+"/pay", nil,
		map[string]string{"If-Match": strconv.Itoa(approved.Version)})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var paid RunDTO
	require.NoError(t, json.Unmarshal(raw, &paid))
	assert.Equal(t, "paid", paid.Status)

	// YTD reflects the committed run.
	_, raw = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-001/ytd?year=2025", nil, nil)
	var ytd YTDDTO
	require.NoError(t, json.Unmarshal(raw, &ytd))
	assert.Equal(t, "2400.00", ytd.Gross)
	assert.Equal(t, "1862.46", ytd.Net)
}

func TestAPI_RunWithFailuresIsDraftAndBlocked(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-001"), nil)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/runs",
		biweeklyRunRequest("2025-06-13", "emp-001", "emp-404"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var run RunDTO
	require.NoError(t, json.Unmarshal(raw, &run))
	assert.Equal(t, "draft", run.Status)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "emp-404", run.Failures[0].EmployeeID)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+run.ID+"/approve", nil,
		map[string]string{"If-Match": strconv.Itoa(run.Version)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Fix the employee and recompute through the API.
	doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-404"), nil)
	resp, raw = doJSON(t, http.MethodPost,
		srv.URL+"/api/runs/"+run.ID+"/recompute?version="+strconv.Itoa(run.Version),
		biweeklyRunRequest("2025-06-13", "emp-404"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var recomputed RunDTO
	require.NoError(t, json.Unmarshal(raw, &recomputed))
	assert.Equal(t, "pending_approval", recomputed.Status)
	assert.Empty(t, recomputed.Failures)
	assert.Len(t, recomputed.Records, 2)
}

func TestAPI_GetUnknownRunIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/runs/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// RULE SETS AND EXPORT
// =============================================================================

func TestAPI_ResolveRuleSet(t *testing.T) {
	srv := newTestServer(t)

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/rulesets?province=ON&date=2025-06-13", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rs RuleSetDTO
	require.NoError(t, json.Unmarshal(raw, &rs))
	assert.Equal(t, "ON-2025-01-01", rs.ID)
	assert.Equal(t, "16129.00", rs.FederalBPA)

	// No published Quebec set.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/rulesets?province=QC&date=2025-06-13", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing province is a validation error.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/rulesets", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ExportPayrollRegister(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/employees", salariedRequest("emp-001"), nil)

	_, raw := doJSON(t, http.MethodPost, srv.URL+"/api/runs", biweeklyRunRequest("2025-06-13", "emp-001"), nil)
	var run RunDTO
	require.NoError(t, json.Unmarshal(raw, &run))

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/runs/"+run.ID+"/export", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3, "header, one record, totals row")
	assert.Contains(t, lines[0], "employee_id")
	assert.Contains(t, lines[1], "emp-001")
	assert.Contains(t, lines[2], "TOTAL")
}
