package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"dgenerate/storage"
)

// Trie is the account state: a Merkle Patricia trie with one pending
// changeset on top of the last committed root. Commit persists the changeset
// as a new version and Discard drops it.
//
// Keys are expected to be hashed by the caller. Trie is not safe for
// concurrent use.
type Trie struct {
	db      *triedb.Database
	pending *gethtrie.Trie
	root    common.Hash
}

// NewTrie opens the trie committed at root. A nil or empty root opens the
// empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{db: store.TrieDB(), root: gethtypes.EmptyRootHash}
	if len(root) > 0 {
		t.root = common.BytesToHash(root)
	}
	if err := t.open(); err != nil {
		return nil, fmt.Errorf("trie: open %s: %w", t.root, err)
	}
	return t, nil
}

func (t *Trie) open() error {
	pending, err := gethtrie.New(gethtrie.TrieID(t.root), t.db)
	if err != nil {
		return err
	}
	t.pending = pending
	return nil
}

func (t *Trie) Get(key []byte) ([]byte, error) { return t.pending.Get(key) }
func (t *Trie) Update(key, value []byte) error { return t.pending.Update(key, value) }
func (t *Trie) Delete(key []byte) error { return t.pending.Delete(key) }

// Hash is the root including the pending changeset.
func (t *Trie) Hash() common.Hash {
	return t.pending.Hash()
}

// Root is the last committed root.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Discard drops every pending write.
func (t *Trie) Discard() error {
	return t.open()
}

// Commit writes the pending changeset through to disk as version and returns
// the new root. An empty changeset keeps the current root.
func (t *Trie) Commit(version uint64) (common.Hash, error) {
	next, nodes := t.pending.Commit(false)
	if nodes != nil {
		set := trienode.NewWithNodeSet(nodes)
		if err := t.db.Update(next, t.root, version, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: update version %d: %w", version, err)
		}
		if err := t.db.Commit(next, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: flush version %d: %w", version, err)
		}
	}
	t.root = next
	if err := t.open(); err != nil {
		return common.Hash{}, err
	}
	return next, nil
}
