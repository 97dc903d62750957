package events

import (
	"strconv"

	"dgenerate/core/types"
	"dgenerate/crypto"
)

const (
	// TypeRewardLedgerInitialized is emitted once when a ledger is created.
	TypeRewardLedgerInitialized = "reward.ledger.initialized"
	// TypeRewardPaid is emitted for every successful rewardUser call.
	TypeRewardPaid = "reward.paid"
	// TypeRewardHalved is emitted alongside TypeRewardPaid when the call
	// crossed the halving threshold.
	TypeRewardHalved = "reward.halved"
	// TypeRewardAdjusted is emitted when the ledger authority lowers the
	// current reward.
	TypeRewardAdjusted = "reward.adjusted"
)

// RewardLedgerInitialized records the starting parameters of a ledger.
type RewardLedgerInitialized struct {
	Ledger           crypto.Identity
	Mint             crypto.Identity
	Authority        crypto.Identity
	InitialReward    uint64
	HalvingThreshold uint64
}

func (RewardLedgerInitialized) EventType() string { return TypeRewardLedgerInitialized }

func (e RewardLedgerInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardLedgerInitialized,
		Attributes: map[string]string{
			"ledger":           e.Ledger.String(),
			"mint":             e.Mint.String(),
			"authority":        e.Authority.String(),
			"initialReward":    strconv.FormatUint(e.InitialReward, 10),
			"halvingThreshold": strconv.FormatUint(e.HalvingThreshold, 10),
		},
	}
}

// RewardPaid captures one payout together with the ledger state it left
// behind.
type RewardPaid struct {
	Ledger      crypto.Identity
	Recipient   crypto.Identity
	Caller      crypto.Identity
	Amount      uint64
	TotalMinted uint64
	NextReward  uint64
	Halved      bool
}

func (RewardPaid) EventType() string { return TypeRewardPaid }

func (e RewardPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPaid,
		Attributes: map[string]string{
			"ledger":      e.Ledger.String(),
			"recipient":   e.Recipient.String(),
			"caller":      e.Caller.String(),
			"amount":      strconv.FormatUint(e.Amount, 10),
			"totalMinted": strconv.FormatUint(e.TotalMinted, 10),
			"nextReward":  strconv.FormatUint(e.NextReward, 10),
			"halved":      strconv.FormatBool(e.Halved),
		},
	}
}

// RewardHalved reports a halving step.
type RewardHalved struct {
	Ledger         crypto.Identity
	PreviousReward uint64
	CurrentReward  uint64
}

func (RewardHalved) EventType() string { return TypeRewardHalved }

func (e RewardHalved) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardHalved,
		Attributes: map[string]string{
			"ledger":         e.Ledger.String(),
			"previousReward": strconv.FormatUint(e.PreviousReward, 10),
			"currentReward":  strconv.FormatUint(e.CurrentReward, 10),
		},
	}
}

// RewardAdjusted reports an authority-driven reward change.
type RewardAdjusted struct {
	Ledger         crypto.Identity
	Authority      crypto.Identity
	PreviousReward uint64
	CurrentReward  uint64
}

func (RewardAdjusted) EventType() string { return TypeRewardAdjusted }

func (e RewardAdjusted) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardAdjusted,
		Attributes: map[string]string{
			"ledger":         e.Ledger.String(),
			"authority":      e.Authority.String(),
			"previousReward": strconv.FormatUint(e.PreviousReward, 10),
			"currentReward":  strconv.FormatUint(e.CurrentReward, 10),
		},
	}
}
