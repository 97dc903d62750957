package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"dgenerate/crypto"
)

// TxType defines the instruction a transaction carries.
type TxType byte

const (
	TxTypeCreateMint         TxType = 0x01 // Register a fungible token mint
	TxTypeCreateTokenAccount TxType = 0x02 // Open a balance account for a mint
	TxTypeSetMintAuthority   TxType = 0x03 // Hand mint authority to another identity
	TxTypeMintTo             TxType = 0x04 // Mint signed by the mint authority itself
	TxTypeInitializeLedger   TxType = 0x10 // Create a reward ledger
	TxTypeRewardUser         TxType = 0x11 // Pay the current reward to a token account
	TxTypeAdjustReward       TxType = 0x12 // Authority lowers the current reward
)

func (t TxType) String() string {
	switch t {
	case TxTypeCreateMint:
		return "create_mint"
	case TxTypeCreateTokenAccount:
		return "create_token_account"
	case TxTypeSetMintAuthority:
		return "set_mint_authority"
	case TxTypeMintTo:
		return "mint_to"
	case TxTypeInitializeLedger:
		return "initialize_ledger"
	case TxTypeRewardUser:
		return "reward_user"
	case TxTypeAdjustReward:
		return "adjust_reward"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

var (
	ErrUnsigned         = errors.New("tx: no signatures")
	ErrInvalidSignature = errors.New("tx: invalid signature")
)

// Transaction is a single signed instruction. Which identity fields matter
// depends on Type:
//
//	CreateMint         Mint, Authority, Decimals
//	CreateTokenAccount Account, Mint, Owner
//	SetMintAuthority   Mint, Authority (new)
//	MintTo             Mint, Account, Authority, Amount
//	InitializeLedger   Ledger, Mint, Authority
//	RewardUser         Ledger, Mint, Account (recipient)
//	AdjustReward       Ledger, Amount (new reward)
type Transaction struct {
	Type      TxType          `json:"type"`
	Nonce     uint64          `json:"nonce"`
	Payer     crypto.Identity `json:"payer"`
	Ledger    crypto.Identity `json:"ledger"`
	Mint      crypto.Identity `json:"mint"`
	Account   crypto.Identity `json:"account"`
	Owner     crypto.Identity `json:"owner"`
	Authority crypto.Identity `json:"authority"`
	Decimals  uint8           `json:"decimals"`
	Amount    uint64          `json:"amount"`

	Signatures []hexutil.Bytes `json:"signatures"`
}

type unsignedTransaction struct {
	Type      TxType
	Nonce     uint64
	Payer     crypto.Identity
	Ledger    crypto.Identity
	Mint      crypto.Identity
	Account   crypto.Identity
	Owner     crypto.Identity
	Authority crypto.Identity
	Decimals  uint8
	Amount    uint64
}

// Hash is keccak256 over the RLP encoding of every unsigned field.
func (tx *Transaction) Hash() ([32]byte, error) {
	var out [32]byte
	encoded, err := rlp.EncodeToBytes(&unsignedTransaction{
		Type:      tx.Type,
		Nonce:     tx.Nonce,
		Payer:     tx.Payer,
		Ledger:    tx.Ledger,
		Mint:      tx.Mint,
		Account:   tx.Account,
		Owner:     tx.Owner,
		Authority: tx.Authority,
		Decimals:  tx.Decimals,
		Amount:    tx.Amount,
	})
	if err != nil {
		return out, err
	}
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out, nil
}

// Sign appends key's signature over the transaction hash.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(hash[:])
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// Signers recovers the identity behind every signature, in order.
func (tx *Transaction) Signers() ([]crypto.Identity, error) {
	if len(tx.Signatures) == 0 {
		return nil, ErrUnsigned
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	signers := make([]crypto.Identity, 0, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		id, err := crypto.RecoverIdentity(hash[:], sig)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidSignature, i, err)
		}
		signers = append(signers, id)
	}
	return signers, nil
}
