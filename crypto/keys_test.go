package crypto

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestIdentityBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	id := key.Identity()
	encoded := id.String()
	require.True(t, strings.HasPrefix(encoded, IdentityPrefix+"1"))

	parsed, err := ParseIdentity(encoded)
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	parsedHex, err := ParseIdentity(id.Hex())
	require.NoError(t, err)
	require.Equal(t, id, parsedHex)
}

func TestParseIdentityRejectsForeignPrefix(t *testing.T) {
	_, err := ParseIdentity("")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = ParseIdentity("0x1234")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = ParseIdentity("not-bech32")
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestIdentityJSON(t *testing.T) {
	id := ProgramIdentity("token")
	raw, err := json.Marshal(struct {
		ID Identity `json:"id"`
	}{ID: id})
	require.NoError(t, err)
	require.Contains(t, string(raw), id.String())

	var decoded struct {
		ID Identity `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, id, decoded.ID)
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("reward"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	signer, err := RecoverIdentity(digest, sig)
	require.NoError(t, err)
	require.Equal(t, key.Identity(), signer)

	other := crypto.Keccak256([]byte("tampered"))
	forged, err := RecoverIdentity(other, sig)
	if err == nil {
		require.NotEqual(t, key.Identity(), forged)
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.True(t, bytes.Equal(key.Bytes(), restored.Bytes()))
	require.Equal(t, key.Identity(), restored.Identity())
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "payer.keystore")
	require.NoError(t, SaveToKeystore(path, key, "hunter2"))

	loaded, err := LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, key.Identity(), loaded.Identity())

	_, err = LoadFromKeystore(path, "wrong")
	require.ErrorIs(t, err, keystore.ErrDecrypt)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, SaveToKeystore(path, other, "hunter3"))
	loaded, err = LoadFromKeystore(path, "hunter3")
	require.NoError(t, err)
	require.Equal(t, other.Identity(), loaded.Identity())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.ErrorIs(t, SaveToKeystore("", key, "x"), ErrKeystorePath)
}
