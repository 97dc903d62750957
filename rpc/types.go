package rpc

import (
	"encoding/json"
	"strconv"

	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/index"
	"dgenerate/native/reward"
	"dgenerate/native/token"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// IdentityParam is the single-object parameter for lookups.
type IdentityParam struct {
	ID crypto.Identity `json:"id"`
}

// LedgerResult renders a ledger for clients. Amounts are decimal strings so
// values above 2^53 survive JavaScript clients.
type LedgerResult struct {
	ID                    string `json:"id"`
	Mint                  string `json:"mint"`
	Authority             string `json:"authority"`
	TotalMinted           string `json:"totalMinted"`
	CurrentReward         string `json:"currentReward"`
	HalvingThreshold      string `json:"halvingThreshold"`
	RemainingUntilHalving string `json:"remainingUntilHalving"`
}

func ledgerResult(id crypto.Identity, l *reward.Ledger) LedgerResult {
	return LedgerResult{
		ID:                    id.String(),
		Mint:                  l.MintID.String(),
		Authority:             l.Authority.String(),
		TotalMinted:           strconv.FormatUint(l.TotalMinted, 10),
		CurrentReward:         strconv.FormatUint(l.CurrentReward, 10),
		HalvingThreshold:      strconv.FormatUint(l.HalvingThreshold, 10),
		RemainingUntilHalving: strconv.FormatUint(l.RemainingUntilHalving(), 10),
	}
}

type AuthorityResult struct {
	Identity string `json:"identity"`
	Bump     uint8  `json:"bump"`
	Program  string `json:"program"`
	Seed     string `json:"seed"`
}

// ScheduleParam selects a ledger to project from; without one the configured
// defaults are projected.
type ScheduleParam struct {
	Ledger    *crypto.Identity `json:"ledger,omitempty"`
	MaxEpochs int              `json:"maxEpochs,omitempty"`
}

type EpochResult struct {
	Index      int    `json:"index"`
	Reward     string `json:"reward"`
	Payouts    string `json:"payouts"`
	Emitted    string `json:"emitted"`
	Cumulative string `json:"cumulative"`
}

type ScheduleResult struct {
	Epochs    []EpochResult `json:"epochs"`
	Total     string        `json:"total"`
	Exhausted bool          `json:"exhausted"`
	Overflows bool          `json:"overflows"`
}

func scheduleResult(p *reward.Projection) ScheduleResult {
	out := ScheduleResult{
		Epochs:    make([]EpochResult, 0, len(p.Epochs)),
		Total:     p.Total.Dec(),
		Exhausted: p.Exhausted,
		Overflows: p.Overflows,
	}
	for _, e := range p.Epochs {
		out.Epochs = append(out.Epochs, EpochResult{
			Index:      e.Index,
			Reward:     strconv.FormatUint(e.Reward, 10),
			Payouts:    strconv.FormatUint(e.Payouts, 10),
			Emitted:    e.Emitted.Dec(),
			Cumulative: e.Cumulative.Dec(),
		})
	}
	return out
}

type HistoryParam struct {
	Recipient crypto.Identity `json:"recipient"`
	Limit     int             `json:"limit,omitempty"`
}

type LeaderboardParam struct {
	Ledger crypto.Identity `json:"ledger"`
	Limit  int             `json:"limit,omitempty"`
}

type HistoryResult struct {
	Records []index.RewardRecord `json:"records"`
}

type LeaderboardResult struct {
	Entries []index.LeaderboardEntry `json:"entries"`
}

type MintResult struct {
	ID            string `json:"id"`
	Decimals      uint8  `json:"decimals"`
	Supply        string `json:"supply"`
	MintAuthority string `json:"mintAuthority"`
	Initialized   bool   `json:"initialized"`
}

func mintResult(id crypto.Identity, m *token.Mint) MintResult {
	return MintResult{
		ID:            id.String(),
		Decimals:      m.Decimals,
		Supply:        strconv.FormatUint(m.Supply, 10),
		MintAuthority: m.MintAuthority.String(),
		Initialized:   m.Initialized,
	}
}

type TokenAccountResult struct {
	ID     string `json:"id"`
	Mint   string `json:"mint"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func tokenAccountResult(id crypto.Identity, a *token.Account) TokenAccountResult {
	return TokenAccountResult{
		ID:     id.String(),
		Mint:   a.Mint.String(),
		Owner:  a.Owner.String(),
		Amount: strconv.FormatUint(a.Amount, 10),
	}
}

type SendTransactionResult struct {
	TxHash string         `json:"txHash"`
	Height uint64         `json:"height"`
	Root   string         `json:"root"`
	Events []*types.Event `json:"events"`
	Reward *RewardSummary `json:"reward,omitempty"`
}

type RewardSummary struct {
	Amount     string `json:"amount"`
	Halved     bool   `json:"halved"`
	NextReward string `json:"nextReward"`
}
