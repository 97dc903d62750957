package reward

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/crypto"
)

func TestLedgerLayout(t *testing.T) {
	ledger := &Ledger{
		MintID:           crypto.ProgramIdentity("mint"),
		TotalMinted:      0x0102,
		CurrentReward:    10_000,
		HalvingThreshold: 10_000_000_000,
		Authority:        crypto.ProgramIdentity("authority"),
	}
	encoded, err := ledger.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, encoded, 96)
	require.Equal(t, ledgerDiscriminator[:], encoded[:8])
	require.Equal(t, ledger.MintID[:], encoded[8:40])
	require.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, encoded[40:48])
	require.Equal(t, ledger.Authority[:], encoded[64:96])

	var decoded Ledger
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	require.Equal(t, *ledger, decoded)
}

func TestLedgerRejectsForeignLayout(t *testing.T) {
	encoded, err := (&Ledger{}).MarshalBinary()
	require.NoError(t, err)

	var decoded Ledger
	require.ErrorIs(t, decoded.UnmarshalBinary(encoded[:95]), ErrInvalidLedger)

	encoded[0] ^= 0xff
	require.ErrorIs(t, decoded.UnmarshalBinary(encoded), ErrInvalidLedger)
}

func TestLedgerValidate(t *testing.T) {
	params := DefaultParams()
	ledger := NewLedger(crypto.ProgramIdentity("mint"), crypto.ProgramIdentity("auth"), params)
	require.NoError(t, ledger.Validate())
	require.Equal(t, params.HalvingThreshold, ledger.RemainingUntilHalving())

	broken := ledger.Clone()
	broken.HalvingThreshold = 0
	require.ErrorIs(t, broken.Validate(), ErrInvalidLedger)
	require.NoError(t, ledger.Validate(), "clone must not alias")
}

func TestNextStepEdges(t *testing.T) {
	step, err := NextStep(&Ledger{TotalMinted: 0, CurrentReward: 10_000, HalvingThreshold: 10_000_000_000})
	require.NoError(t, err)
	require.Equal(t, Step{Amount: 10_000, TotalMinted: 10_000, CurrentReward: 10_000}, step)

	step, err = NextStep(&Ledger{TotalMinted: 9_999_990_000, CurrentReward: 10_000, HalvingThreshold: 10_000_000_000})
	require.NoError(t, err)
	require.Equal(t, Step{Amount: 10_000, TotalMinted: 0, CurrentReward: 5_000, Halved: true}, step)

	step, err = NextStep(&Ledger{CurrentReward: 1, HalvingThreshold: 1})
	require.NoError(t, err)
	require.Equal(t, Step{Amount: 1, TotalMinted: 0, CurrentReward: 0, Halved: true}, step)
}

func TestCodeClassification(t *testing.T) {
	require.Equal(t, 0, Code(nil))
	kind, ok := Classify(ErrInvalidAPIResponse)
	require.True(t, ok)
	require.Equal(t, "InvalidApiResponse", kind.Name)
	require.Equal(t, 6001, kind.Code)
	_, ok = Classify(ErrUnauthorized)
	require.True(t, ok)
}
