package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesStructuredKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := SetupWithOptions("rewardd", "test", Options{Output: &buf, Level: "debug"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("ledger initialized", MaskField("jwt", "secret"), MaskField("ledger", "dg1abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "ledger initialized", line["message"])
	require.Equal(t, "rewardd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["jwt"])
	require.Equal(t, "dg1abc", line["ledger"])
	require.Contains(t, line, "timestamp")
}

func TestSetupTeesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rewardd.log")
	var buf bytes.Buffer
	logger, closer, err := SetupWithOptions("rewardd", "", Options{Output: &buf, File: path})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.Bytes(), data)
}

func TestParseLevel(t *testing.T) {
	_, err := ParseLevel("verbose")
	require.Error(t, err)
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, "WARN", lvl.String())
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "", MaskField("jwtSecret", "").Value.String())
	require.Equal(t, "reward_sendTransaction", MaskField("Method", "reward_sendTransaction").Value.String())
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://reward:hunter2@db:5432/index?sslmode=disable": "postgres://reward:[REDACTED]@db:5432/index?sslmode=disable",
		"postgres://db:5432/index?password=hunter2":               "postgres://db:5432/index?password=[REDACTED]",
		"host=db user=reward password=hunter2 dbname=index":       "host=db user=reward password=[REDACTED] dbname=index",
		"/var/lib/dgenerate/index.db":                             "/var/lib/dgenerate/index.db",
		"postgresql://reward@db/index":                            "postgresql://reward@db/index",
	}
	for in, want := range cases {
		got := MaskDSN(in)
		require.Equal(t, want, got, in)
		require.NotContains(t, got, "hunter2")
	}
}
