package reward

import (
	"math"

	"github.com/holiman/uint256"
)

// MaxScheduleEpochs caps projections. A uint64 reward reaches zero after at
// most 64 halvings.
const MaxScheduleEpochs = 65

// Epoch is the stretch of payouts between two halvings.
type Epoch struct {
	Index   int
	Reward  uint64
	Payouts uint64
	// Emitted is Reward * Payouts; Cumulative includes every earlier epoch.
	Emitted    *uint256.Int
	Cumulative *uint256.Int
}

// Projection is the emission schedule a ledger will follow if nobody adjusts
// its reward.
type Projection struct {
	Epochs []Epoch
	Total  *uint256.Int
	// Exhausted is set once the reward has halved down to zero.
	Exhausted bool
	// Overflows is set when a payout would push the ledger counter past
	// uint64, at which point rewardUser fails with a calculation overflow.
	Overflows bool
}

// Project replays the halving rule from the ledger's current state for up to
// maxEpochs epochs. The replay is exact, including the single halving per
// call.
func Project(l *Ledger, maxEpochs int) *Projection {
	if maxEpochs <= 0 || maxEpochs > MaxScheduleEpochs {
		maxEpochs = MaxScheduleEpochs
	}
	proj := &Projection{Total: uint256.NewInt(0)}
	threshold := uint256.NewInt(l.HalvingThreshold)
	limit := uint256.NewInt(math.MaxUint64)
	total := uint256.NewInt(l.TotalMinted)
	reward := l.CurrentReward

	for i := 0; i < maxEpochs; i++ {
		if reward == 0 {
			proj.Exhausted = true
			break
		}
		r := uint256.NewInt(reward)
		payouts := uint256.NewInt(1)
		if total.Lt(threshold) {
			need := new(uint256.Int).Sub(threshold, total)
			payouts.Add(need, r)
			payouts.SubUint64(payouts, 1)
			payouts.Div(payouts, r)
		}
		emitted := new(uint256.Int).Mul(payouts, r)
		total.Add(total, emitted)
		if total.Gt(limit) {
			proj.Overflows = true
			break
		}
		proj.Total = new(uint256.Int).Add(proj.Total, emitted)
		proj.Epochs = append(proj.Epochs, Epoch{
			Index:      i,
			Reward:     reward,
			Payouts:    payouts.Uint64(),
			Emitted:    emitted,
			Cumulative: proj.Total.Clone(),
		})
		total.Sub(total, threshold)
		reward /= 2
	}
	return proj
}

// Schedule projects a fresh ledger created with p.
func (p Params) Schedule(maxEpochs int) *Projection {
	return Project(&Ledger{CurrentReward: p.InitialReward, HalvingThreshold: p.HalvingThreshold}, maxEpochs)
}
