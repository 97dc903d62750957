package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/native/reward"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, reward.DefaultParams(), cfg.Reward)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/dgenerate"
GenesisFile = "genesis.yaml"
Environment = "prod"

[Reward]
InitialReward = 500
HalvingThreshold = 1000
AuthoritySeed = "season_two"
RequireAuthority = true

[RPC]
JWTSecretEnv = "DG_TEST_JWT"
RequestsPerMinute = 120
Burst = 10

[Log]
Level = "debug"
File = "/var/log/dgenerate/rewardd.log"

[Index]
DSN = "postgres://rewards@localhost/rewards"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("DG_TEST_JWT", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, reward.Params{
		InitialReward:    500,
		HalvingThreshold: 1000,
		AuthoritySeed:    "season_two",
		RequireAuthority: true,
	}, cfg.Reward)
	require.Equal(t, "from-env", cfg.JWTSecret())
	require.Equal(t, 15, cfg.RPC.ReadTimeout)
	require.Equal(t, "/var/lib/dgenerate/state", cfg.StatePath())
	require.Equal(t, "postgres://rewards@localhost/rewards", cfg.Index.DSN)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":1\"\nListenAddress = \":2\"\n"), 0o600))
	_, err := Load(path)
	require.ErrorContains(t, err, "ListenAddress")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.Reward.AuthoritySeed = "a-seed-that-is-definitely-longer-than-thirty-two-bytes"
	require.ErrorIs(t, bad.Validate(), reward.ErrInvalidParams)

	bad = Default()
	bad.RPC.Burst = 0
	require.Error(t, bad.Validate())

	bad = Default()
	bad.Telemetry.SampleRatio = 1.5
	require.Error(t, bad.Validate())
}
