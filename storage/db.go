package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the ledger runtime. Besides plain
// metadata reads and writes it exposes the trie database used by the state
// trie, so every layer shares one backend.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close()
}

type kvDatabase struct {
	kv     ethdb.KeyValueStore
	db     ethdb.Database
	trieDB *triedb.Database
}

func newKVDatabase(kv ethdb.KeyValueStore) *kvDatabase {
	db := rawdb.NewDatabase(kv)
	return &kvDatabase{
		kv:     kv,
		db:     db,
		trieDB: triedb.NewDatabase(db, triedb.HashDefaults),
	}
}

func (d *kvDatabase) Put(key []byte, value []byte) error {
	return d.kv.Put(key, value)
}

func (d *kvDatabase) Get(key []byte) ([]byte, error) {
	ok, err := d.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return d.kv.Get(key)
}

func (d *kvDatabase) Has(key []byte) (bool, error) {
	return d.kv.Has(key)
}

func (d *kvDatabase) TrieDB() *triedb.Database {
	return d.trieDB
}

func (d *kvDatabase) Close() {
	_ = d.trieDB.Close()
	_ = d.db.Close()
}

// --- In-Memory DB (for testing) ---

// MemDB keeps everything in process memory.
type MemDB struct {
	*kvDatabase
}

func NewMemDB() *MemDB {
	return &MemDB{kvDatabase: newKVDatabase(memorydb.New())}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	*kvDatabase
}

// LevelDBOptions tunes the on-disk store. Zero values fall back to defaults.
type LevelDBOptions struct {
	CacheMB  int
	Handles  int
	ReadOnly bool
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return OpenLevelDB(path, LevelDBOptions{})
}

// OpenLevelDB opens the database at path with explicit tuning.
func OpenLevelDB(path string, opts LevelDBOptions) (*LevelDB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: leveldb path required")
	}
	cache := opts.CacheMB
	if cache <= 0 {
		cache = 16
	}
	handles := opts.Handles
	if handles <= 0 {
		handles = 64
	}
	kv, err := leveldb.NewCustom(path, "dgenerate/db/", func(o *opt.Options) {
		o.OpenFilesCacheCapacity = handles
		o.BlockCacheCapacity = cache / 2 * opt.MiB
		o.WriteBuffer = cache / 4 * opt.MiB
		o.ReadOnly = opts.ReadOnly
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %s: %w", path, err)
	}
	return &LevelDB{kvDatabase: newKVDatabase(kv)}, nil
}
