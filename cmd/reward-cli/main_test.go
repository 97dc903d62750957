package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/core/runtime"
	"dgenerate/crypto"
	"dgenerate/native/reward"
	"dgenerate/rpc"
	"dgenerate/storage"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func startNode(t *testing.T) *runtime.Runtime {
	t.Helper()
	quiet := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rt, err := runtime.New(storage.NewMemDB(), reward.DefaultParams(), runtime.Options{Logger: quiet})
	require.NoError(t, err)
	srv := httptest.NewServer(rpc.NewServer(rt, nil, rpc.Config{}, quiet).Handler())
	t.Cleanup(srv.Close)

	original := rpcEndpoint
	rpcEndpoint = srv.URL
	t.Cleanup(func() { rpcEndpoint = original })
	t.Setenv(keystorePassEnv, "correct horse")
	return rt
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	return stdout.String()
}

func identityOf(t *testing.T, path string) crypto.Identity {
	t.Helper()
	key, err := crypto.LoadFromKeystore(path, "correct horse")
	require.NoError(t, err)
	return key.Identity()
}

func TestEndToEndRewardFlow(t *testing.T) {
	rt := startNode(t)
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin.json")
	player := filepath.Join(dir, "player.json")
	mint := filepath.Join(dir, "mint.json")
	account := filepath.Join(dir, "account.json")
	ledger := filepath.Join(dir, "ledger.json")

	out := mustRun(t, "keygen", "--out", admin)
	require.Contains(t, out, identityOf(t, admin).String())
	mustRun(t, "keygen", "--out", player)

	mustRun(t, "create-mint", "--key", admin, "--mint", mint, "--decimals", "6")
	mintID := identityOf(t, mint)
	mustRun(t, "create-account", "--key", admin, "--account", account,
		"--mint", mintID.String(), "--owner", identityOf(t, player).String())
	accountID := identityOf(t, account)
	mustRun(t, "init", "--key", admin, "--ledger", ledger, "--mint", mintID.String())
	ledgerID := identityOf(t, ledger)
	mustRun(t, "set-mint-authority", "--key", admin, "--mint", mintID.String(), "--authority", "game")

	out = mustRun(t, "reward", "--key", player, "--ledger", ledgerID.String(),
		"--mint", mintID.String(), "--account", accountID.String())
	require.Contains(t, out, `"amount": "10000"`)

	mustRun(t, "adjust-reward", "--key", admin, "--ledger", ledgerID.String(), "--reward", "400")

	out = mustRun(t, "ledger", "--id", ledgerID.String())
	var ledgerResult rpc.LedgerResult
	require.NoError(t, json.Unmarshal([]byte(out), &ledgerResult))
	require.Equal(t, "400", ledgerResult.CurrentReward)
	require.Equal(t, "10000", ledgerResult.TotalMinted)

	out = mustRun(t, "account", accountID.Hex())
	require.Contains(t, out, `"amount": "10000"`)

	authority, _, err := rt.GameAuthority()
	require.NoError(t, err)
	out = mustRun(t, "mint", "--id", mintID.String())
	require.Contains(t, out, authority.String())
}

func TestRewardErrorIsReported(t *testing.T) {
	startNode(t)
	dir := t.TempDir()
	player := filepath.Join(dir, "player.json")
	mustRun(t, "keygen", "--out", player)

	var stdout, stderr bytes.Buffer
	code := run([]string{"reward", "--key", player,
		"--ledger", crypto.ProgramIdentity("nope").String(),
		"--mint", crypto.ProgramIdentity("mint").String(),
		"--account", crypto.ProgramIdentity("acct").String()}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "RPC error 6007")
	require.Contains(t, stderr.String(), "LedgerNotFound")
}

func TestCallErrorIncludesEndpoint(t *testing.T) {
	originalEndpoint, originalClient := rpcEndpoint, httpClient
	rpcEndpoint = "http://test.invalid"
	httpClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused (test stub)")
	})}
	defer func() { rpcEndpoint, httpClient = originalEndpoint, originalClient }()

	var stdout, stderr bytes.Buffer
	code := run([]string{"authority"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "POST http://test.invalid")
	require.Contains(t, stderr.String(), "connection refused (test stub)")
}

func TestGlobalFlags(t *testing.T) {
	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	defer func() { rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken }()

	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:1", "ledger", "--token=abc", "--id", "x"})
	require.NoError(t, err)
	require.Equal(t, []string{"ledger", "--id", "x"}, rest)
	require.Equal(t, "http://node:1", rpcEndpoint)
	require.Equal(t, "abc", rpcAuthToken)

	_, err = applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run([]string{"frobnicate"}, &stdout, &stderr))
	require.True(t, strings.Contains(stderr.String(), "Unknown command"))
}
