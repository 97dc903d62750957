package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"dgenerate/cmd/internal/passphrase"
	"dgenerate/core/types"
	"dgenerate/crypto"
)

// txFlags are shared by every transaction command.
type txFlags struct {
	key   string
	nonce uint64
}

func (f *txFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.key, "key", "", "keystore of the payer and signing authority")
	fs.Uint64Var(&f.nonce, "nonce", 0, "transaction nonce (defaults to the current time in nanoseconds)")
}

func (f *txFlags) resolveNonce() uint64 {
	if f.nonce != 0 {
		return f.nonce
	}
	return uint64(time.Now().UnixNano())
}

func parseIdentityFlag(name, raw string, required bool) (crypto.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return crypto.ZeroIdentity, fmt.Errorf("--%s is required", name)
		}
		return crypto.ZeroIdentity, nil
	}
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return crypto.ZeroIdentity, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

// submit signs tx with every key and sends it.
func submit(stdout, stderr io.Writer, tx *types.Transaction, keys ...*crypto.PrivateKey) int {
	for _, key := range keys {
		if err := tx.Sign(key); err != nil {
			fmt.Fprintf(stderr, "Error: sign transaction: %v\n", err)
			return 1
		}
	}
	return invoke(stdout, stderr, "reward_sendTransaction", []interface{}{tx}, true)
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func runCreateMint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("create-mint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var mintPath, authority string
	var decimals uint
	fs.StringVar(&mintPath, "mint", "", "keystore of the new mint account (created when missing)")
	fs.UintVar(&decimals, "decimals", 9, "token decimals")
	fs.StringVar(&authority, "authority", "", "mint authority (defaults to the payer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if decimals > 255 {
		return fail(stderr, fmt.Errorf("--decimals must fit in a byte"))
	}
	pass := newPassSource()
	payer, err := loadKey(common.key, pass)
	if err != nil {
		return fail(stderr, err)
	}
	mintKey, created, err := loadOrCreateKey(mintPath, pass)
	if err != nil {
		return fail(stderr, err)
	}
	if created {
		fmt.Fprintf(stderr, "created mint keystore %s\n", mintPath)
	}
	auth, err := parseIdentityFlag("authority", authority, false)
	if err != nil {
		return fail(stderr, err)
	}
	if auth.IsZero() {
		auth = payer.Identity()
	}
	tx := &types.Transaction{
		Type:      types.TxTypeCreateMint,
		Nonce:     common.resolveNonce(),
		Payer:     payer.Identity(),
		Mint:      mintKey.Identity(),
		Authority: auth,
		Decimals:  uint8(decimals),
	}
	return submit(stdout, stderr, tx, payer, mintKey)
}

func runCreateAccount(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var accountPath, mint, owner string
	fs.StringVar(&accountPath, "account", "", "keystore of the new token account (created when missing)")
	fs.StringVar(&mint, "mint", "", "mint identity")
	fs.StringVar(&owner, "owner", "", "account owner (defaults to the payer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass := newPassSource()
	payer, err := loadKey(common.key, pass)
	if err != nil {
		return fail(stderr, err)
	}
	mintID, err := parseIdentityFlag("mint", mint, true)
	if err != nil {
		return fail(stderr, err)
	}
	ownerID, err := parseIdentityFlag("owner", owner, false)
	if err != nil {
		return fail(stderr, err)
	}
	if ownerID.IsZero() {
		ownerID = payer.Identity()
	}
	accountKey, created, err := loadOrCreateKey(accountPath, pass)
	if err != nil {
		return fail(stderr, err)
	}
	if created {
		fmt.Fprintf(stderr, "created token account keystore %s\n", accountPath)
	}
	tx := &types.Transaction{
		Type:    types.TxTypeCreateTokenAccount,
		Nonce:   common.resolveNonce(),
		Payer:   payer.Identity(),
		Account: accountKey.Identity(),
		Mint:    mintID,
		Owner:   ownerID,
	}
	return submit(stdout, stderr, tx, payer, accountKey)
}

// resolveAuthority accepts an identity or "game", which is looked up over RPC.
func resolveAuthority(raw string) (crypto.Identity, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "game") {
		result, rpcErr, err := callRPC("reward_getAuthority", nil, false)
		if err != nil {
			return crypto.ZeroIdentity, err
		}
		if rpcErr != nil {
			return crypto.ZeroIdentity, fmt.Errorf("RPC error %d: %s", rpcErr.Code, rpcErr.Message)
		}
		var authority struct {
			Identity string `json:"identity"`
		}
		if err := json.Unmarshal(result, &authority); err != nil {
			return crypto.ZeroIdentity, err
		}
		return crypto.ParseIdentity(authority.Identity)
	}
	return parseIdentityFlag("authority", raw, true)
}

func runSetMintAuthority(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("set-mint-authority", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var mint, authority string
	fs.StringVar(&mint, "mint", "", "mint identity")
	fs.StringVar(&authority, "authority", "game", `new mint authority, or "game" for the derived game authority`)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	mintID, err := parseIdentityFlag("mint", mint, true)
	if err != nil {
		return fail(stderr, err)
	}
	next, err := resolveAuthority(authority)
	if err != nil {
		return fail(stderr, err)
	}
	current, err := loadKey(common.key, newPassSource())
	if err != nil {
		return fail(stderr, err)
	}
	tx := &types.Transaction{
		Type:      types.TxTypeSetMintAuthority,
		Nonce:     common.resolveNonce(),
		Payer:     current.Identity(),
		Mint:      mintID,
		Authority: next,
	}
	return submit(stdout, stderr, tx, current)
}

func runInitialize(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var ledgerPath, mint string
	fs.StringVar(&ledgerPath, "ledger", "", "keystore of the new ledger account (created when missing)")
	fs.StringVar(&mint, "mint", "", "mint the ledger pays out")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	mintID, err := parseIdentityFlag("mint", mint, true)
	if err != nil {
		return fail(stderr, err)
	}
	pass := newPassSource()
	authority, err := loadKey(common.key, pass)
	if err != nil {
		return fail(stderr, err)
	}
	ledgerKey, created, err := loadOrCreateKey(ledgerPath, pass)
	if err != nil {
		return fail(stderr, err)
	}
	if created {
		fmt.Fprintf(stderr, "created ledger keystore %s\n", ledgerPath)
	}
	tx := &types.Transaction{
		Type:      types.TxTypeInitializeLedger,
		Nonce:     common.resolveNonce(),
		Payer:     authority.Identity(),
		Ledger:    ledgerKey.Identity(),
		Mint:      mintID,
		Authority: authority.Identity(),
	}
	return submit(stdout, stderr, tx, authority, ledgerKey)
}

func runReward(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reward", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var ledger, mint, account string
	var cosigners stringList
	fs.StringVar(&ledger, "ledger", "", "ledger identity")
	fs.StringVar(&mint, "mint", "", "mint identity")
	fs.StringVar(&account, "account", "", "recipient token account")
	fs.Var(&cosigners, "cosign", "extra keystore to sign with, e.g. the ledger authority (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ledgerID, err := parseIdentityFlag("ledger", ledger, true)
	if err != nil {
		return fail(stderr, err)
	}
	mintID, err := parseIdentityFlag("mint", mint, true)
	if err != nil {
		return fail(stderr, err)
	}
	accountID, err := parseIdentityFlag("account", account, true)
	if err != nil {
		return fail(stderr, err)
	}
	keys, err := loadSigners(common.key, cosigners, newPassSource())
	if err != nil {
		return fail(stderr, err)
	}
	tx := &types.Transaction{
		Type:    types.TxTypeRewardUser,
		Nonce:   common.resolveNonce(),
		Payer:   keys[0].Identity(),
		Ledger:  ledgerID,
		Mint:    mintID,
		Account: accountID,
	}
	return submit(stdout, stderr, tx, keys...)
}

func runAdjustReward(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("adjust-reward", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common txFlags
	common.register(fs)
	var ledger string
	var reward uint64
	fs.StringVar(&ledger, "ledger", "", "ledger identity")
	fs.Uint64Var(&reward, "reward", 0, "new current reward; must not exceed the present one")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ledgerID, err := parseIdentityFlag("ledger", ledger, true)
	if err != nil {
		return fail(stderr, err)
	}
	authority, err := loadKey(common.key, newPassSource())
	if err != nil {
		return fail(stderr, err)
	}
	tx := &types.Transaction{
		Type:   types.TxTypeAdjustReward,
		Nonce:  common.resolveNonce(),
		Payer:  authority.Identity(),
		Ledger: ledgerID,
		Amount: reward,
	}
	return submit(stdout, stderr, tx, authority)
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func loadSigners(primary string, extra []string, pass *passphrase.Source) ([]*crypto.PrivateKey, error) {
	keys := make([]*crypto.PrivateKey, 0, 1+len(extra))
	for _, path := range append([]string{primary}, extra...) {
		key, err := loadKey(path, pass)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
