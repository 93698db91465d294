package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/instruction"
	"github.com/xraph/parkledger/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	require.NoError(t, app.Run(append([]string{"parkledger"}, args...)))
	return buf.String()
}

func TestKeygenJSON(t *testing.T) {
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(run(t, "keygen", "--json")), &out))

	addr, err := address.Parse(out["address"])
	require.NoError(t, err)
	assert.True(t, address.IsOnCurve(addr))
	assert.Len(t, out["private_key"], 128)
}

func TestDeriveMatchesInstructionBuilders(t *testing.T) {
	admin := address.ProgramID("admin-key")
	user := address.ProgramID("user-key")

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(run(t,
		"derive", "--json", "--program", "lot-7",
		"--admin", admin.String(), "--user", user.String(),
	)), &out))

	program := address.ProgramID("lot-7")
	tenant, _, err := address.Derive(program, address.DomainTenant, admin)
	require.NoError(t, err)
	addrs, err := instruction.DeriveEntry(program, tenant, user)
	require.NoError(t, err)

	assert.Equal(t, program.String(), out["program"])
	assert.Equal(t, tenant.String(), out["tenant"])
	assert.Equal(t, addrs.Entry.String(), out["entry"])
	assert.Equal(t, addrs.Vault.String(), out["vault"])
}

func TestDeriveFromTenant(t *testing.T) {
	tenant := address.ProgramID("some-tenant")
	out := run(t, "derive", "--tenant", tenant.String())
	assert.Contains(t, out, tenant.String())
	assert.NotContains(t, out, "entry")
}

func TestDeriveRequiresOwner(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"parkledger", "derive"})
	require.Error(t, err)

	a := address.ProgramID("x").String()
	err = app.Run([]string{"parkledger", "derive", "--admin", a, "--tenant", a})
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, config.Store{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = openStore(ctx, config.Store{
		Driver: config.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Close())

	_, err = openStore(ctx, config.Store{Driver: "etcd"})
	require.Error(t, err)
}

func TestHandlerServesMetricsAndAPI(t *testing.T) {
	cfg := config.Default()
	s, err := openStore(context.Background(), cfg.Store)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, reg, err := newLedger(cfg, s, logger)
	require.NoError(t, err)
	require.NotNil(t, reg)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	srv := httptest.NewServer(newHandler(cfg, l, reg, logger))
	t.Cleanup(srv.Close)

	admin := address.ProgramID("metrics-admin")
	body := `{"admin":"` + admin.String() + `","name":"Lot A"}`
	resp, err := http.Post(srv.URL+"/tenants", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "parkledger_tenant_created_total 1")
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestHandlerWithoutMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	s, err := openStore(context.Background(), cfg.Store)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, reg, err := newLedger(cfg, s, logger)
	require.NoError(t, err)
	assert.Nil(t, reg)

	srv := httptest.NewServer(newHandler(cfg, l, reg, logger))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuditEventsAreLogged(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(config.Log{Level: "info", Format: "json"}, &buf)

	cfg := config.Default()
	cfg.Metrics.Enabled = false
	s, err := openStore(context.Background(), cfg.Store)
	require.NoError(t, err)
	l, _, err := newLedger(cfg, s, logger)
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	_, err = l.CreateTenant(context.Background(), address.ProgramID("audited-admin"), "Lot B")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"msg":"audit"`)
	assert.Contains(t, buf.String(), `"action":"tenant.created"`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
}
