package state

import (
	"bytes"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/storage/trie"
)

// Manager reads and writes the keyed account store and auxiliary records held
// in the state trie. Every key is hashed before it reaches the trie.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var (
	accountPrefix   = []byte("account:")
	processedPrefix = []byte("processed-tx:")
)

func accountKey(id crypto.Identity) []byte {
	buf := make([]byte, 0, len(accountPrefix)+crypto.IdentityLength)
	buf = append(buf, accountPrefix...)
	buf = append(buf, id[:]...)
	return ethcrypto.Keccak256(buf)
}

func processedKey(hash [32]byte) []byte {
	buf := make([]byte, 0, len(processedPrefix)+len(hash))
	buf = append(buf, processedPrefix...)
	buf = append(buf, hash[:]...)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Account returns the account stored at id, or nil when none exists.
func (m *Manager) Account(id crypto.Identity) (*types.Account, error) {
	data, err := m.trie.Get(accountKey(id))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", id, err)
	}
	return account, nil
}

// AccountExists reports whether an account is stored at id.
func (m *Manager) AccountExists(id crypto.Identity) (bool, error) {
	data, err := m.trie.Get(accountKey(id))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// CreateAccount stores a fresh account owned by owner. Creating an account at
// an occupied identity fails with types.ErrAccountExists.
func (m *Manager) CreateAccount(id, owner crypto.Identity, data []byte) error {
	if id.IsZero() {
		return fmt.Errorf("state: account identity must not be zero")
	}
	exists, err := m.AccountExists(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrAccountExists, id)
	}
	return m.putAccount(id, &types.Account{Owner: owner, Data: append([]byte(nil), data...)})
}

// WriteAccount replaces the data of an existing account. Only the owning
// program may write.
func (m *Manager) WriteAccount(id, owner crypto.Identity, data []byte) error {
	existing, err := m.Account(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", types.ErrAccountNotFound, id)
	}
	if existing.Owner != owner {
		return fmt.Errorf("%w: %s", types.ErrAccountOwner, id)
	}
	existing.Data = append([]byte(nil), data...)
	return m.putAccount(id, existing)
}

func (m *Manager) putAccount(id crypto.Identity, account *types.Account) error {
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return m.trie.Update(accountKey(id), encoded)
}

// MarkProcessed records a transaction hash so replays can be rejected.
func (m *Manager) MarkProcessed(hash [32]byte) error {
	return m.trie.Update(processedKey(hash), []byte{1})
}

// Processed reports whether hash was previously marked.
func (m *Manager) Processed(hash [32]byte) (bool, error) {
	data, err := m.trie.Get(processedKey(hash))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends value to the byte-slice list stored under key. Duplicates
// are ignored.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.trie.Get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(hashed, encoded)
}

// KVGetList decodes the list stored under key into out, which must be a
// pointer to a slice. Missing keys yield an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
