package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrapay/abono/internal/api"
	"github.com/obrapay/abono/internal/domain"
	"github.com/obrapay/abono/internal/infra/sqlite"
	"github.com/obrapay/abono/internal/ledger"
)

type testEnv struct {
	srv *httptest.Server
	db  *sqlite.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewServer(ledger.New(db)).Handler())
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return &testEnv{srv: srv, db: db}
}

func (e *testEnv) seedProject(t *testing.T, total string, credit bool) int64 {
	t.Helper()
	id, err := e.db.InsertProject(context.Background(), decimal.RequireFromString(total), credit)
	require.NoError(t, err)
	return id
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRecordPayment_Created(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.seedProject(t, "1000.00", true)

	resp := env.postJSON(t, "/v1/payments", map[string]any{
		"project_id": projectID,
		"amount":     "400.00",
		"method":     "Card",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var entry domain.PaymentEntry
	decodeBody(t, resp, &entry)
	assert.NotZero(t, entry.ID)
	assert.True(t, entry.Active)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, domain.MethodCard, entry.Method)
}

func TestRecordPayment_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	cash := env.seedProject(t, "1000.00", false)
	credit := env.seedProject(t, "1000.00", true)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing method",
			body:       map[string]any{"project_id": credit, "amount": "100"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "payments.validation",
		},
		{
			name:       "zero amount",
			body:       map[string]any{"project_id": credit, "amount": "0", "method": "Cash"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "payments.invalid_amount",
		},
		{
			name:       "unknown project",
			body:       map[string]any{"project_id": 999, "amount": "100", "method": "Cash"},
			wantStatus: http.StatusNotFound,
			wantCode:   "payments.project_not_found",
		},
		{
			name:       "cash partial",
			body:       map[string]any{"project_id": cash, "amount": "600", "method": "Cash"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "payments.single_payment_required",
		},
		{
			name:       "credit over total",
			body:       map[string]any{"project_id": credit, "amount": "1200", "method": "Card"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "payments.over_total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postJSON(t, "/v1/payments", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetPayment(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.seedProject(t, "1000.00", true)
	resp := env.postJSON(t, "/v1/payments", map[string]any{
		"project_id": projectID, "amount": "250.50", "method": "Check",
	})
	var created domain.PaymentEntry
	decodeBody(t, resp, &created)

	got, err := http.Get(fmt.Sprintf("%s/v1/payments/%d", env.srv.URL, created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)

	var entry domain.PaymentEntry
	decodeBody(t, got, &entry)
	assert.Equal(t, created.ID, entry.ID)

	missing, err := http.Get(env.srv.URL + "/v1/payments/9999")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListPayments_ProjectFilter(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedProject(t, "1000.00", true)
	second := env.seedProject(t, "1000.00", true)

	env.postJSON(t, "/v1/payments", map[string]any{"project_id": first, "amount": "100", "method": "Cash"}).Body.Close()
	env.postJSON(t, "/v1/payments", map[string]any{"project_id": second, "amount": "200", "method": "Card"}).Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/v1/payments?project_id=%d", env.srv.URL, second))
	require.NoError(t, err)
	var entries []domain.PaymentEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].ProjectID)

	all, err := http.Get(env.srv.URL + "/v1/payments")
	require.NoError(t, err)
	decodeBody(t, all, &entries)
	assert.Len(t, entries, 2)
}

func TestSearchPayments(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.seedProject(t, "1000.00", true)
	env.postJSON(t, "/v1/payments", map[string]any{"project_id": projectID, "amount": "100", "method": "Transfer"}).Body.Close()
	env.postJSON(t, "/v1/payments", map[string]any{"project_id": projectID, "amount": "100", "method": "Cash"}).Body.Close()

	resp, err := http.Get(env.srv.URL + "/v1/payments/search?q=transf")
	require.NoError(t, err)
	var entries []domain.PaymentEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.MethodTransfer, entries[0].Method)
}

func TestCancelPayment_ThenConflict(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.seedProject(t, "1000.00", true)
	resp := env.postJSON(t, "/v1/payments", map[string]any{
		"project_id": projectID, "amount": "100", "method": "Cash",
	})
	var created domain.PaymentEntry
	decodeBody(t, resp, &created)

	cancelPath := fmt.Sprintf("/v1/payments/%d/cancel", created.ID)
	first := env.postJSON(t, cancelPath, map[string]any{"reason": "duplicate charge"})
	first.Body.Close()
	assert.Equal(t, http.StatusNoContent, first.StatusCode)

	second := env.postJSON(t, cancelPath, map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	var body map[string]string
	decodeBody(t, second, &body)
	assert.Equal(t, "payments.cancel_conflict", body["code"])

	missingReason := env.postJSON(t, cancelPath, map[string]any{})
	defer missingReason.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missingReason.StatusCode)
}

func TestOutstanding(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.seedProject(t, "1000.00", true)
	env.postJSON(t, "/v1/payments", map[string]any{"project_id": projectID, "amount": "399.99", "method": "Card"}).Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/v1/projects/%d/outstanding", env.srv.URL, projectID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		TotalCost decimal.Decimal `json:"total_cost"`
		TotalPaid decimal.Decimal `json:"total_paid"`
		Pending   decimal.Decimal `json:"pending"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.TotalPaid.Equal(decimal.RequireFromString("399.99")))
	assert.True(t, body.Pending.Equal(decimal.RequireFromString("600.01")))

	missing, err := http.Get(env.srv.URL + "/v1/projects/999/outstanding")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
