package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"dgenerate/config"
	"dgenerate/core/events"
	"dgenerate/core/genesis"
	"dgenerate/core/runtime"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/index"
	"dgenerate/storage"
)

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	require.NoError(t, f.Close())
	return path
}

func TestScheduleUsesOverrides(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"schedule", "--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--initial-reward", "8", "--halving-threshold", "16"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out struct {
		Epochs    []epochView `json:"epochs"`
		Total     string      `json:"total"`
		Exhausted bool        `json:"exhausted"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.True(t, out.Exhausted)
	require.Equal(t, uint64(8), out.Epochs[0].Reward)
	require.Equal(t, uint64(2), out.Epochs[0].Payouts)
	require.Len(t, out.Epochs, 4)
}

func TestInspectAndListLedgers(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	configPath := writeConfig(t, cfg)

	ledger := crypto.ProgramIdentity("ctl:ledger")
	mint := crypto.ProgramIdentity("ctl:mint")
	db, err := storage.NewLevelDB(cfg.StatePath())
	require.NoError(t, err)
	rt, err := runtime.New(db, cfg.Reward, runtime.Options{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))})
	require.NoError(t, err)
	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf("mints:\n  - id: %s\nledgers:\n  - id: %s\n    mint: %s\n    authority: %s\n",
		mint, ledger, mint, crypto.ProgramIdentity("ctl:admin"))))
	require.NoError(t, err)
	require.NoError(t, rt.ApplyGenesis(context.Background(), spec))
	db.Close()

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"inspect-ledger", "--config", configPath, "--id", ledger.String()}, &stdout, &stderr), stderr.String())
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &view))
	require.Equal(t, mint.String(), view["mintId"])
	require.EqualValues(t, 10_000, view["currentReward"])

	stdout.Reset()
	require.Equal(t, 0, run([]string{"list-ledgers", "--config", configPath}, &stdout, &stderr), stderr.String())
	require.Equal(t, ledger.String()+"\n", stdout.String())

	stderr.Reset()
	require.Equal(t, 1, run([]string{"inspect-ledger", "--config", configPath, "--id", mint.String()}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "reward:")
}

func TestExportHistory(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "index.db")
	store, err := index.Open(dsn, nil)
	require.NoError(t, err)
	paid := events.RewardPaid{
		Ledger:    crypto.ProgramIdentity("ctl:ledger"),
		Recipient: crypto.ProgramIdentity("ctl:account"),
		Amount:    5, TotalMinted: 5, NextReward: 5,
	}
	_, err = store.Ingest(context.Background(), &runtime.Receipt{Height: 1, Events: []*types.Event{paid.Event()}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out := filepath.Join(dir, "history.parquet")
	var stdout, stderr bytes.Buffer
	code := run([]string{"export-history", "--dsn", dsn, "--out", out}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "exported 1 payouts")
	require.FileExists(t, out)
}

func TestExportHistoryWithoutIndex(t *testing.T) {
	configPath := writeConfig(t, config.Default())
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run([]string{"export-history", "--config", configPath}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "no index configured")
}
