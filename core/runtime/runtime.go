package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dgenerate/core/state"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/native/reward"
	"dgenerate/native/token"
	"dgenerate/observability"
	"dgenerate/observability/otel"
	"dgenerate/storage"
	"dgenerate/storage/trie"
)

var (
	headKey        = []byte("dgenerate/head")
	ledgerIndexKey = []byte("reward/ledgers")
)

type head struct {
	Root   common.Hash
	Height uint64
}

// Options tunes a Runtime. Zero values fall back to slog.Default, the global
// runtime metrics and time.Now.
type Options struct {
	Logger  *slog.Logger
	Metrics *observability.RuntimeMetrics
	Clock   func() time.Time
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash    common.Hash          `json:"txHash"`
	Type      string               `json:"type"`
	Height    uint64               `json:"height"`
	Root      common.Hash          `json:"root"`
	Payer     crypto.Identity      `json:"payer"`
	Events    []*types.Event       `json:"events"`
	Reward    *reward.RewardResult `json:"reward,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Runtime executes transactions one at a time against the state trie. Every
// transaction either commits a new root or leaves the previous root in place.
type Runtime struct {
	mu      sync.Mutex
	db      storage.Database
	trie    *trie.Trie
	state   *state.Manager
	height  uint64
	tokens  *token.Engine
	rewards *reward.Engine

	logger  *slog.Logger
	metrics *observability.RuntimeMetrics
	clock   func() time.Time

	subsMu  sync.RWMutex
	subs    map[int]*subscription
	nextSub int
}

// New opens the state stored in db, or an empty state on a fresh database.
func New(db storage.Database, params reward.Params, opts Options) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("runtime: database required")
	}
	rewards, err := reward.NewEngine(params)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		db:      db,
		tokens:  token.NewEngine(),
		rewards: rewards,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		subs:    make(map[int]*subscription),
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.metrics == nil {
		rt.metrics = observability.Runtime()
	}
	if rt.clock == nil {
		rt.clock = time.Now
	}
	rt.logger = rt.logger.With(slog.String("component", "runtime"))

	stored, fresh, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if !fresh {
		root = stored.Root.Bytes()
	}
	rt.trie, err = trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("runtime: open state: %w", err)
	}
	rt.state = state.NewManager(rt.trie)
	rt.height = stored.Height

	if fresh {
		if err := rt.state.SetStateVersion(state.StateVersion); err != nil {
			return nil, err
		}
		if err := rt.commit(0); err != nil {
			return nil, err
		}
	} else if err := rt.state.CheckStateVersion(); err != nil {
		return nil, err
	}
	rt.metrics.SetHeight(rt.height)
	return rt, nil
}

func loadHead(db storage.Database) (head, bool, error) {
	var h head
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return h, true, nil
	}
	if err != nil {
		return h, false, err
	}
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return h, false, fmt.Errorf("runtime: decode head: %w", err)
	}
	return h, false, nil
}

// commit persists pending trie writes and records the new head.
func (r *Runtime) commit(height uint64) error {
	root, err := r.trie.Commit(height)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&head{Root: root, Height: height})
	if err != nil {
		return err
	}
	if err := r.db.Put(headKey, encoded); err != nil {
		return err
	}
	r.height = height
	return nil
}

func (r *Runtime) rollback() {
	if err := r.trie.Discard(); err != nil {
		r.logger.Error("rollback failed", slog.Any("error", err))
	}
}

// Execute validates, applies and commits tx.
func (r *Runtime) Execute(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	start := r.clock()
	ctx, span := otel.Tracer().Start(ctx, "runtime.execute",
		trace.WithAttributes(attribute.String("tx.type", tx.Type.String())))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	receipt, err := r.execute(tx)
	r.mu.Unlock()

	r.metrics.ObserveTransaction(tx.Type.String(), err, r.clock().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("transaction rejected",
			slog.String("type", tx.Type.String()),
			slog.String("payer", tx.Payer.String()),
			slog.Any("error", err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tx.hash", receipt.TxHash.Hex()),
		attribute.Int64("height", int64(receipt.Height)),
	)
	r.logger.Info("transaction committed",
		slog.String("type", receipt.Type),
		slog.String("tx", receipt.TxHash.Hex()),
		slog.Uint64("height", receipt.Height))
	r.publish(receipt)
	return receipt, nil
}

func (r *Runtime) execute(tx *types.Transaction) (*Receipt, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	signers, err := tx.Signers()
	if err != nil {
		return nil, err
	}
	txc := newTxContext(r, signers, crypto.ZeroIdentity)
	if tx.Payer.IsZero() || !txc.IsSigner(tx.Payer) {
		return nil, ErrPayerSignature
	}
	seen, err := r.state.Processed(hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("%w: %x", ErrDuplicate, hash)
	}

	result, err := r.dispatch(txc, tx)
	if err == nil {
		err = r.state.MarkProcessed(hash)
	}
	if err == nil {
		err = r.commit(r.height + 1)
	}
	if err != nil {
		r.rollback()
		return nil, err
	}
	r.metrics.SetHeight(r.height)
	if result != nil {
		r.metrics.RecordReward(tx.Ledger.String(), result.Amount, result.Ledger.CurrentReward, result.Halved)
	}
	return &Receipt{
		TxHash:    common.Hash(hash),
		Type:      tx.Type.String(),
		Height:    r.height,
		Root:      r.trie.Root(),
		Payer:     tx.Payer,
		Events:    txc.events,
		Reward:    result,
		Timestamp: r.clock().UTC(),
	}, nil
}

func (r *Runtime) dispatch(txc *txContext, tx *types.Transaction) (*reward.RewardResult, error) {
	switch tx.Type {
	case types.TxTypeCreateMint:
		txc.program = token.ProgramID
		_, err := r.tokens.CreateMint(txc, tx.Mint, tx.Decimals, tx.Authority)
		return nil, err
	case types.TxTypeCreateTokenAccount:
		txc.program = token.ProgramID
		_, err := r.tokens.CreateAccount(txc, tx.Account, tx.Mint, tx.Owner)
		return nil, err
	case types.TxTypeSetMintAuthority:
		txc.program = token.ProgramID
		mint, err := r.tokens.LoadMint(txc, tx.Mint)
		if err != nil {
			return nil, err
		}
		return nil, r.tokens.SetMintAuthority(txc, tx.Mint, crypto.SignerAuthority(mint.MintAuthority), tx.Authority)
	case types.TxTypeMintTo:
		txc.program = token.ProgramID
		_, err := r.tokens.MintTo(txc, tx.Mint, tx.Account, crypto.SignerAuthority(tx.Authority), tx.Amount)
		return nil, err
	case types.TxTypeInitializeLedger:
		txc.program = reward.ProgramID
		ledger, err := r.rewards.Initialize(txc, tx.Ledger, tx.Mint, tx.Authority)
		if err != nil {
			return nil, err
		}
		if err := r.state.KVAppend(ledgerIndexKey, tx.Ledger.Bytes()); err != nil {
			return nil, err
		}
		r.metrics.SetCurrentReward(tx.Ledger.String(), ledger.CurrentReward)
		return nil, nil
	case types.TxTypeRewardUser:
		txc.program = reward.ProgramID
		return r.rewards.RewardUser(txc, reward.RewardRequest{
			Ledger:    tx.Ledger,
			Mint:      tx.Mint,
			Recipient: tx.Account,
			Caller:    tx.Payer,
		})
	case types.TxTypeAdjustReward:
		txc.program = reward.ProgramID
		ledger, err := r.rewards.AdjustReward(txc, tx.Ledger, tx.Amount)
		if err != nil {
			return nil, err
		}
		r.metrics.SetCurrentReward(tx.Ledger.String(), ledger.CurrentReward)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
}

// Height returns the number of committed transactions.
func (r *Runtime) Height() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

// Root returns the committed state root.
func (r *Runtime) Root() common.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trie.Root()
}

// Params returns the reward configuration.
func (r *Runtime) Params() reward.Params {
	return r.rewards.Params()
}

// GameAuthority returns the derived identity that must hold mint authority
// for rewards to be paid.
func (r *Runtime) GameAuthority() (crypto.Identity, uint8, error) {
	return r.rewards.MintAuthority()
}

// Ledger returns the committed ledger at id.
func (r *Runtime) Ledger(id crypto.Identity) (*reward.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, err := r.state.Account(id)
	if err != nil {
		return nil, err
	}
	return reward.DecodeLedger(account)
}

// Ledgers lists every initialized ledger in creation order.
func (r *Runtime) Ledgers() ([]crypto.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var raw [][]byte
	if err := r.state.KVGetList(ledgerIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]crypto.Identity, 0, len(raw))
	for _, b := range raw {
		id, err := crypto.IdentityFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Mint returns the committed mint at id.
func (r *Runtime) Mint(id crypto.Identity) (*token.Mint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, err := r.state.Account(id)
	if err != nil {
		return nil, err
	}
	return token.DecodeMint(account)
}

// TokenAccount returns the committed token account at id.
func (r *Runtime) TokenAccount(id crypto.Identity) (*token.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, err := r.state.Account(id)
	if err != nil {
		return nil, err
	}
	return token.DecodeAccount(account)
}
