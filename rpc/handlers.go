package rpc

import (
	"context"
	"strconv"

	"dgenerate/core/types"
	"dgenerate/native/reward"
)

func (s *Server) handleSendTransaction(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var tx types.Transaction
	if err := decodeParam(req, &tx); err != nil {
		return nil, err
	}
	if len(tx.Signatures) == 0 {
		return nil, invalidParams("transaction must be signed", nil)
	}
	receipt, err := s.node.Execute(ctx, &tx)
	if err != nil {
		return nil, err
	}
	result := SendTransactionResult{
		TxHash: receipt.TxHash.Hex(),
		Height: receipt.Height,
		Root:   receipt.Root.Hex(),
		Events: receipt.Events,
	}
	if receipt.Reward != nil {
		result.Reward = &RewardSummary{
			Amount:     strconv.FormatUint(receipt.Reward.Amount, 10),
			Halved:     receipt.Reward.Halved,
			NextReward: strconv.FormatUint(receipt.Reward.Ledger.CurrentReward, 10),
		}
	}
	return result, nil
}

func (s *Server) handleGetLedger(_ context.Context, req *RPCRequest) (interface{}, error) {
	id, err := decodeIdentity(req)
	if err != nil {
		return nil, err
	}
	ledger, err := s.node.Ledger(id)
	if err != nil {
		return nil, err
	}
	return ledgerResult(id, ledger), nil
}

func (s *Server) handleGetAuthority(_ context.Context, _ *RPCRequest) (interface{}, error) {
	id, bump, err := s.node.GameAuthority()
	if err != nil {
		return nil, err
	}
	return AuthorityResult{
		Identity: id.String(),
		Bump:     bump,
		Program:  reward.ProgramID.String(),
		Seed:     s.node.Params().AuthoritySeed,
	}, nil
}

func (s *Server) handleGetSchedule(_ context.Context, req *RPCRequest) (interface{}, error) {
	var param ScheduleParam
	if len(req.Params) > 0 {
		if err := decodeParam(req, &param); err != nil {
			return nil, err
		}
	}
	if param.MaxEpochs < 0 || param.MaxEpochs > reward.MaxScheduleEpochs {
		return nil, invalidParams("maxEpochs out of range", reward.MaxScheduleEpochs)
	}
	if param.Ledger != nil {
		ledger, err := s.node.Ledger(*param.Ledger)
		if err != nil {
			return nil, err
		}
		return scheduleResult(reward.Project(ledger, param.MaxEpochs)), nil
	}
	return scheduleResult(s.node.Params().Schedule(param.MaxEpochs)), nil
}

func (s *Server) handleGetHistory(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if s.history == nil {
		return nil, &RPCError{Code: codeUnavailable, Message: "reward index not configured"}
	}
	var param HistoryParam
	if err := decodeParam(req, &param); err != nil {
		return nil, err
	}
	if param.Recipient.IsZero() {
		return nil, invalidParams("recipient required", nil)
	}
	records, err := s.history.History(ctx, param.Recipient, param.Limit)
	if err != nil {
		return nil, err
	}
	return HistoryResult{Records: records}, nil
}

func (s *Server) handleGetLeaderboard(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if s.history == nil {
		return nil, &RPCError{Code: codeUnavailable, Message: "reward index not configured"}
	}
	var param LeaderboardParam
	if err := decodeParam(req, &param); err != nil {
		return nil, err
	}
	if param.Ledger.IsZero() {
		return nil, invalidParams("ledger required", nil)
	}
	entries, err := s.history.Leaderboard(ctx, param.Ledger, param.Limit)
	if err != nil {
		return nil, err
	}
	return LeaderboardResult{Entries: entries}, nil
}

func (s *Server) handleGetMint(_ context.Context, req *RPCRequest) (interface{}, error) {
	id, err := decodeIdentity(req)
	if err != nil {
		return nil, err
	}
	mint, err := s.node.Mint(id)
	if err != nil {
		return nil, err
	}
	return mintResult(id, mint), nil
}

func (s *Server) handleGetAccount(_ context.Context, req *RPCRequest) (interface{}, error) {
	id, err := decodeIdentity(req)
	if err != nil {
		return nil, err
	}
	account, err := s.node.TokenAccount(id)
	if err != nil {
		return nil, err
	}
	return tokenAccountResult(id, account), nil
}
