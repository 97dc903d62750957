package reward

import (
	"fmt"
	"math/bits"
)

// Step is the outcome of one payout computed from a ledger.
type Step struct {
	// Amount is paid to the recipient. It always equals the reward in force
	// before the call.
	Amount        uint64
	TotalMinted   uint64
	CurrentReward uint64
	Halved        bool
}

// NextStep computes the payout and the ledger transition for one rewardUser
// call without touching state.
//
// The halving is applied at most once per call. A reward large enough to
// leave TotalMinted at or above the threshold after one subtraction is not
// halved again until the next call.
func NextStep(l *Ledger) (Step, error) {
	amount := l.CurrentReward
	total, err := checkedAdd(l.TotalMinted, amount)
	if err != nil {
		return Step{}, err
	}
	step := Step{Amount: amount, TotalMinted: total, CurrentReward: l.CurrentReward}
	if total < l.HalvingThreshold {
		return step, nil
	}
	if step.CurrentReward, err = checkedDiv(l.CurrentReward, 2); err != nil {
		return Step{}, err
	}
	if step.TotalMinted, err = checkedSub(total, l.HalvingThreshold); err != nil {
		return Step{}, err
	}
	step.Halved = true
	return step, nil
}

// Apply writes the step's counters into l.
func (s Step) Apply(l *Ledger) {
	l.TotalMinted = s.TotalMinted
	l.CurrentReward = s.CurrentReward
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrCalculationOverflow, a, b)
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrCalculationOverflow, a, b)
	}
	return diff, nil
}

func checkedDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrCalculationOverflow)
	}
	return a / b, nil
}
