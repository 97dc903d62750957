package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/storage"
	"dgenerate/storage/trie"
)

func newTestManager(t *testing.T) (*Manager, *trie.Trie) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return NewManager(tr), tr
}

func TestCreateAccountRejectsOccupiedIdentity(t *testing.T) {
	mgr, _ := newTestManager(t)
	id := crypto.ProgramIdentity("ledger-a")
	owner := crypto.ProgramIdentity("owner")

	require.NoError(t, mgr.CreateAccount(id, owner, []byte{1, 2}))
	err := mgr.CreateAccount(id, owner, []byte{3})
	require.ErrorIs(t, err, types.ErrAccountExists)

	account, err := mgr.Account(id)
	require.NoError(t, err)
	require.Equal(t, owner, account.Owner)
	require.Equal(t, []byte{1, 2}, account.Data)
}

func TestWriteAccountChecksOwner(t *testing.T) {
	mgr, _ := newTestManager(t)
	id := crypto.ProgramIdentity("acct")
	owner := crypto.ProgramIdentity("owner")

	err := mgr.WriteAccount(id, owner, []byte{1})
	require.ErrorIs(t, err, types.ErrAccountNotFound)

	require.NoError(t, mgr.CreateAccount(id, owner, nil))
	err = mgr.WriteAccount(id, crypto.ProgramIdentity("intruder"), []byte{9})
	require.ErrorIs(t, err, types.ErrAccountOwner)

	require.NoError(t, mgr.WriteAccount(id, owner, []byte{7}))
	account, err := mgr.Account(id)
	require.NoError(t, err)
	require.Equal(t, []byte{7}, account.Data)
}

func TestMissingAccountIsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	account, err := mgr.Account(crypto.ProgramIdentity("nobody"))
	require.NoError(t, err)
	require.Nil(t, account)

	exists, err := mgr.AccountExists(crypto.ProgramIdentity("nobody"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestProcessedMarkersSurviveCommit(t *testing.T) {
	mgr, tr := newTestManager(t)
	hash := [32]byte{0xaa}

	seen, err := mgr.Processed(hash)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, mgr.MarkProcessed(hash))
	_, err = tr.Commit(1)
	require.NoError(t, err)

	seen, err = mgr.Processed(hash)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestResetRollsBackAccountWrites(t *testing.T) {
	mgr, tr := newTestManager(t)
	id := crypto.ProgramIdentity("rollback")
	require.NoError(t, mgr.CreateAccount(id, crypto.ZeroIdentity, []byte{1}))
	require.NoError(t, tr.Discard())

	exists, err := mgr.AccountExists(id)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestKVAppendIgnoresDuplicates(t *testing.T) {
	mgr, _ := newTestManager(t)
	key := []byte("index/ledgers")

	var empty [][]byte
	require.NoError(t, mgr.KVGetList(key, &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)

	require.NoError(t, mgr.KVAppend(key, []byte("a")))
	require.NoError(t, mgr.KVAppend(key, []byte("b")))
	require.NoError(t, mgr.KVAppend(key, []byte("a")))

	var list [][]byte
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestStateVersionCheck(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.ErrorIs(t, mgr.CheckStateVersion(), ErrStateUnversioned)

	require.NoError(t, mgr.SetStateVersion(StateVersion+1))
	require.ErrorIs(t, mgr.CheckStateVersion(), ErrStateVersionMismatch)

	require.NoError(t, mgr.SetStateVersion(StateVersion))
	require.NoError(t, mgr.CheckStateVersion())
	version, err := mgr.StateVersion()
	require.NoError(t, err)
	require.Equal(t, StateVersion, version)
}
