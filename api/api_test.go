package api_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/api"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/instruction"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store/memory"
	"github.com/xraph/parkledger/tenant"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func key(t *testing.T) address.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, err := address.FromPublicKey(pub)
	require.NoError(t, err)
	return a
}

type harness struct {
	t      *testing.T
	ledger *parkledger.Ledger
	clock  *clock
	h      http.Handler
}

func newHarness(t *testing.T, opts ...api.Option) *harness {
	t.Helper()
	c := &clock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	l := parkledger.New(memory.New(),
		parkledger.WithClock(c.Now),
		parkledger.WithFeePolicy(fee.PerMinute(100)),
	)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	opts = append([]api.Option{api.WithFaucet(true)}, opts...)
	return &harness{
		t:      t,
		ledger: l,
		clock:  c,
		h:      api.New(l, opts...).Handler(),
	}
}

// do sends a request and decodes the JSON response into out when non-nil.
func (h *harness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)

	assert.Equal(h.t, "application/json", rec.Header().Get("Content-Type"))
	if out != nil {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *harness) expectError(method, path string, body any, status int, code string) {
	h.t.Helper()
	var e apiError
	assert.Equal(h.t, status, h.do(method, path, body, &e))
	assert.Equal(h.t, code, e.Error.Code)
	assert.NotEmpty(h.t, e.Error.Message)
}

func TestParkingOverHTTP(t *testing.T) {
	h := newHarness(t)
	admin, user, operator := key(t), key(t), key(t)

	var tn tenant.Tenant
	require.Equal(t, http.StatusCreated, h.do("POST", "/tenants", map[string]any{
		"admin": admin, "name": "Central Station",
	}, &tn))
	assert.Equal(t, admin, tn.Admin)

	var found tenant.Tenant
	require.Equal(t, http.StatusOK, h.do("GET", "/tenants/"+admin.String(), nil, &found))
	assert.Equal(t, tn.Address, found.Address)

	base := "/tenants/" + tn.Address.String() + "/entries"
	var e entry.Entry
	require.Equal(t, http.StatusCreated, h.do("POST", base, map[string]any{
		"user": user, "plate": "TN-09-BX-4455",
	}, &e))
	assert.Equal(t, "TN-09-BX-4455", e.Plate)

	userPath := base + "/" + user.String()

	var credited struct {
		Balance uint64 `json:"balance"`
	}
	require.Equal(t, http.StatusOK, h.do("POST", "/accounts/"+user.String()+"/credit", map[string]any{"amount": 50_000}, &credited))
	assert.Equal(t, uint64(50_000), credited.Balance)

	require.Equal(t, http.StatusOK, h.do("POST", userPath+"/deposit", map[string]any{"amount": 2_000}, &e))
	assert.Equal(t, uint64(2_000), e.Balance)

	require.Equal(t, http.StatusOK, h.do("POST", userPath+"/sessions/start", nil, &e))
	assert.True(t, e.Parked)

	h.clock.Advance(7*time.Minute + 30*time.Second)

	var st parkledger.Settlement
	require.Equal(t, http.StatusOK, h.do("POST", userPath+"/sessions/exit", map[string]any{
		"fee_recipient": operator,
	}, &st))
	assert.Equal(t, uint64(700), st.Fee)
	assert.Equal(t, uint64(450), st.Elapsed)
	assert.Equal(t, uint64(1_300), st.Entry.Balance)
	assert.False(t, st.Entry.Parked)

	require.Equal(t, http.StatusOK, h.do("POST", userPath+"/withdraw", map[string]any{"amount": 300}, &e))
	assert.Equal(t, uint64(1_000), e.Balance)

	var got entry.Entry
	require.Equal(t, http.StatusOK, h.do("GET", userPath, nil, &got))
	assert.Equal(t, e.Balance, got.Balance)

	var entries []entry.Entry
	require.Equal(t, http.StatusOK, h.do("GET", base+"?limit=10", nil, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, user, entries[0].Owner)

	var rs []receipt.Receipt
	require.Equal(t, http.StatusOK, h.do("GET", userPath+"/receipts", nil, &rs))
	require.NotEmpty(t, rs)
	assert.Equal(t, receipt.OpWithdraw, rs[0].Op)

	require.Equal(t, http.StatusOK, h.do("GET", userPath+"/receipts?op=exit_session", nil, &rs))
	require.Len(t, rs, 1)
	assert.Equal(t, uint64(700), rs[0].Fee)

	var acct account.Account
	require.Equal(t, http.StatusOK, h.do("GET", "/accounts/"+operator.String(), nil, &acct))
	assert.Equal(t, uint64(700), acct.Lamports)
	assert.Equal(t, account.KindWallet, acct.Kind)
}

func TestErrorResponses(t *testing.T) {
	h := newHarness(t)
	admin, user, stranger := key(t), key(t), key(t)

	var tn tenant.Tenant
	require.Equal(t, http.StatusCreated, h.do("POST", "/tenants", map[string]any{"admin": admin, "name": "Mall"}, &tn))
	base := "/tenants/" + tn.Address.String() + "/entries"
	require.Equal(t, http.StatusCreated, h.do("POST", base, map[string]any{"user": user, "plate": "P-1"}, nil))
	userPath := base + "/" + user.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"DuplicateTenant", "POST", "/tenants", map[string]any{"admin": admin, "name": "Mall"}, http.StatusConflict, "AlreadyExists"},
		{"EmptyName", "POST", "/tenants", map[string]any{"admin": stranger, "name": ""}, http.StatusBadRequest, "EmptyName"},
		{"UnknownTenant", "GET", "/tenants/" + stranger.String(), nil, http.StatusNotFound, "NotFound"},
		{"UnknownEntry", "GET", base + "/" + stranger.String(), nil, http.StatusNotFound, "NotFound"},
		{"BadAddress", "GET", "/tenants/not-an-address", nil, http.StatusBadRequest, "InvalidAddress"},
		{"UnknownField", "POST", userPath + "/deposit", map[string]any{"amount": 1, "memo": "x"}, http.StatusBadRequest, "InvalidBody"},
		{"ZeroDeposit", "POST", userPath + "/deposit", map[string]any{"amount": 0}, http.StatusBadRequest, "InvalidDepositAmount"},
		{"UnfundedDeposit", "POST", userPath + "/deposit", map[string]any{"amount": 10}, http.StatusUnprocessableEntity, "InsufficientFunds"},
		{"ExitWhileIdle", "POST", userPath + "/sessions/exit", map[string]any{"fee_recipient": stranger}, http.StatusConflict, "NotCurrentlyParked"},
		{"BadLimit", "GET", base + "?limit=-1", nil, http.StatusBadRequest, "InvalidQuery"},
		{"NoRoute", "GET", "/nowhere", nil, http.StatusNotFound, "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.t = t
			h.expectError(tt.method, tt.path, tt.body, tt.status, tt.code)
		})
	}
}

func TestExitWithoutFundsIsUnprocessable(t *testing.T) {
	h := newHarness(t)
	admin, user, operator := key(t), key(t), key(t)

	tn, err := h.ledger.CreateTenant(context.Background(), admin, "Depot")
	require.NoError(t, err)
	_, err = h.ledger.OpenEntry(context.Background(), tn.Address, user, "P-2")
	require.NoError(t, err)
	_, err = h.ledger.StartSession(context.Background(), tn.Address, user)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	path := "/tenants/" + tn.Address.String() + "/entries/" + user.String() + "/sessions/exit"
	h.expectError("POST", path, map[string]any{"fee_recipient": operator}, http.StatusUnprocessableEntity, "InsufficientVaultBalance")
}

func TestInstructionsEndpoint(t *testing.T) {
	h := newHarness(t)
	admin := key(t)

	ix, err := instruction.CreateTenant(h.ledger.Program(), admin, "Riverside")
	require.NoError(t, err)

	var res parkledger.Result
	require.Equal(t, http.StatusOK, h.do("POST", "/instructions", ix, &res))
	assert.Equal(t, instruction.Op("create_tenant"), res.Op)
	require.NotNil(t, res.Tenant)
	assert.Equal(t, "Riverside", res.Tenant.Name)

	ix.Accounts[0].Signer = false
	h.expectError("POST", "/instructions", ix, http.StatusBadRequest, "MissingSigner")
}

func TestFaucetDisabled(t *testing.T) {
	h := newHarness(t, api.WithFaucet(false))
	h.expectError("POST", "/accounts/"+key(t).String()+"/credit", map[string]any{"amount": 1}, http.StatusNotFound, "NotFound")
}

func TestBasePath(t *testing.T) {
	h := newHarness(t, api.WithBasePath("/v1/parking/"))

	var body map[string]string
	require.Equal(t, http.StatusOK, h.do("GET", "/v1/parking/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])

	h.expectError("GET", "/healthz", nil, http.StatusNotFound, "NotFound")
}

func TestRequestID(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	issued := rec.Header().Get(api.RequestIDHeader)
	assert.True(t, strings.HasPrefix(issued, "req_"), issued)

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, issued)
	rec = httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)
	assert.Equal(t, issued, rec.Header().Get(api.RequestIDHeader))

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, "client-chosen")
	rec = httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)
	assert.NotEqual(t, "client-chosen", rec.Header().Get(api.RequestIDHeader))
}
