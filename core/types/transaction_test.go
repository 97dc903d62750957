package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/crypto"
)

func TestTransactionSignersRecoverEverySignature(t *testing.T) {
	payer, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ledger, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	tx := &Transaction{
		Type:      TxTypeInitializeLedger,
		Nonce:     7,
		Payer:     payer.Identity(),
		Ledger:    ledger.Identity(),
		Mint:      crypto.ProgramIdentity("mint"),
		Authority: payer.Identity(),
	}
	require.NoError(t, tx.Sign(payer))
	require.NoError(t, tx.Sign(ledger))

	signers, err := tx.Signers()
	require.NoError(t, err)
	require.Equal(t, []crypto.Identity{payer.Identity(), ledger.Identity()}, signers)
}

func TestTransactionHashCoversFields(t *testing.T) {
	tx := &Transaction{Type: TxTypeRewardUser, Nonce: 1}
	first, err := tx.Hash()
	require.NoError(t, err)

	tx.Amount = 5
	second, err := tx.Hash()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))
	third, err := tx.Hash()
	require.NoError(t, err)
	require.Equal(t, second, third, "signatures must not affect the hash")
}

func TestTransactionUnsigned(t *testing.T) {
	_, err := (&Transaction{Type: TxTypeRewardUser}).Signers()
	require.ErrorIs(t, err, ErrUnsigned)
}

func TestTransactionJSONKeepsSignatures(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	tx := &Transaction{Type: TxTypeCreateMint, Payer: key.Identity(), Mint: key.Identity(), Authority: key.Identity(), Decimals: 9}
	require.NoError(t, tx.Sign(key))

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	signers, err := decoded.Signers()
	require.NoError(t, err)
	require.Equal(t, []crypto.Identity{key.Identity()}, signers)
}

func TestTxTypeString(t *testing.T) {
	require.Equal(t, "reward_user", TxTypeRewardUser.String())
	require.Equal(t, "unknown(0x7f)", TxType(0x7f).String())
}
