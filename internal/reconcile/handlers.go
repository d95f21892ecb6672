package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sftsync/internal/model"
	"sftsync/internal/sft"
	"sftsync/internal/store"
)

// claimExpMultiplier converts a claimed balance into awarded experience.
const claimExpMultiplier = 3

// tokenDecimals is the scale between wei token values and staked value units.
const tokenDecimals = 18

// logContext carries one log through its transaction.
type logContext struct {
	tx       store.Tx
	log      types.Log
	fund     *model.Fund
	action   model.EventAction
	earnings []model.EarningRecord
}

func (lc *logContext) fields(extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("contract", lc.log.Address.Hex()),
		zap.String("tx_hash", lc.log.TxHash.Hex()),
		zap.Uint64("block_number", lc.log.BlockNumber),
		zap.Uint("log_index", lc.log.Index),
	}, extra...)
}

func (e *Engine) apply(ctx context.Context, lc *logContext, event sft.Event) error {
	switch ev := event.(type) {
	case sft.TransferValue:
		return e.applyTransferValue(ctx, lc, ev)
	case sft.SlotChanged:
		return e.applySlotChanged(ctx, lc, ev)
	case sft.TransferToken:
		return e.applyTransferToken(ctx, lc, ev)
	case sft.Claim:
		return e.applyClaim(ctx, lc, ev)
	default:
		return fmt.Errorf("unhandled event kind %s", event.Kind())
	}
}

// writeEventLog appends the audit row for the log. It runs before any
// mutation so that the row exists whenever the log was applied.
func (e *Engine) writeEventLog(ctx context.Context, lc *logContext, action model.EventAction) error {
	topics := make([]string, 0, len(lc.log.Topics))
	for _, topic := range lc.log.Topics {
		topics = append(topics, topic.Hex())
	}

	record := model.EventLogRecord{
		Action:           action,
		BlockNumber:      lc.log.BlockNumber,
		BlockHash:        lc.log.BlockHash.Hex(),
		TransactionIndex: uint64(lc.log.TxIndex),
		TransactionHash:  lc.log.TxHash.Hex(),
		LogIndex:         uint64(lc.log.Index),
		ContractAddress:  lc.log.Address.Hex(),
		Data:             hexutil.Encode(lc.log.Data),
		Topics:           topics,
	}
	if err := lc.tx.CreateEventLog(ctx, &record); err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	lc.action = action
	return nil
}

func (e *Engine) applyTransferValue(ctx context.Context, lc *logContext, ev sft.TransferValue) error {
	if err := e.writeEventLog(ctx, lc, model.ActionTransferValue); err != nil {
		return err
	}
	if lc.fund == nil {
		e.diag.Miss(MissFund, lc.fields()...)
		return nil
	}

	value := decimal.NewFromBigInt(ev.Value, 0)
	if err := e.adjustTokenValue(ctx, lc, ev.FromTokenID, value.Neg()); err != nil {
		return err
	}
	return e.adjustTokenValue(ctx, lc, ev.ToTokenID, value)
}

func (e *Engine) adjustTokenValue(ctx context.Context, lc *logContext, tokenID *big.Int, delta decimal.Decimal) error {
	token, ok, err := e.findToken(ctx, lc, tokenID)
	if err != nil || !ok {
		return err
	}
	current, err := parseTokenValue(token.TokenValue)
	if err != nil {
		return fmt.Errorf("token %s: %w", token.TokenID, err)
	}
	token.TokenValue = current.Add(delta).String()
	if err := lc.tx.UpdateToken(ctx, token); err != nil {
		return fmt.Errorf("update token %s value: %w", token.TokenID, err)
	}
	return nil
}

func (e *Engine) applySlotChanged(ctx context.Context, lc *logContext, ev sft.SlotChanged) error {
	if err := e.writeEventLog(ctx, lc, model.ActionChangeSlot); err != nil {
		return err
	}
	if lc.fund == nil {
		e.diag.Miss(MissFund, lc.fields()...)
		return nil
	}

	token, ok, err := e.findToken(ctx, lc, ev.TokenID)
	if err != nil || !ok {
		return err
	}

	slot := ev.NewSlot.String()
	if pkg, found := lc.fund.PackageForSlot(slot); found {
		id := pkg.ID
		token.PackageID = &id
	} else {
		token.PackageID = nil
		e.diag.Miss(MissPackage, lc.fields(zap.String("slot", slot), zap.Int64("fund_id", lc.fund.ID))...)
	}
	if err := lc.tx.UpdateToken(ctx, token); err != nil {
		return fmt.Errorf("update token %s package: %w", token.TokenID, err)
	}
	return nil
}

// transferAction classifies a token transfer. Mint and burn are decided by
// the zero address; stake and unstake need the fund's vault.
func transferAction(ev sft.TransferToken, fund *model.Fund) model.EventAction {
	switch {
	case ev.IsMint():
		return model.ActionMintPackage
	case ev.IsBurn():
		return model.ActionBurn
	case fund != nil && fund.IsVault(ev.From.Hex()):
		return model.ActionUnstake
	case fund != nil && fund.IsVault(ev.To.Hex()):
		return model.ActionStake
	default:
		return model.ActionTransferToken
	}
}

func (e *Engine) applyTransferToken(ctx context.Context, lc *logContext, ev sft.TransferToken) error {
	action := transferAction(ev, lc.fund)
	if err := e.writeEventLog(ctx, lc, action); err != nil {
		return err
	}
	if lc.fund == nil {
		e.diag.Miss(MissFund, lc.fields()...)
		return nil
	}

	if action == model.ActionMintPackage {
		token := model.Token{
			FundID:          lc.fund.ID,
			ContractAddress: lc.fund.SFTAddress,
			TokenID:         sft.TokenIDHex(ev.TokenID),
			Owner:           ev.To.Hex(),
			TokenValue:      "0",
			Status:          model.TokenStatusHolding,
		}
		if err := lc.tx.CreateToken(ctx, &token); err != nil {
			return fmt.Errorf("create token %s: %w", token.TokenID, err)
		}
		return nil
	}

	token, ok, err := e.findToken(ctx, lc, ev.TokenID)
	if err != nil || !ok {
		return err
	}

	switch action {
	case model.ActionBurn:
		token.Status = model.TokenStatusBurned
	case model.ActionUnstake:
		token.Status = model.TokenStatusHolding
	case model.ActionStake:
		token.Status = model.TokenStatusStaking
	default:
		token.Owner = ev.To.Hex()
	}
	if err := lc.tx.UpdateToken(ctx, token); err != nil {
		return fmt.Errorf("update token %s: %w", token.TokenID, err)
	}

	switch action {
	case model.ActionUnstake:
		return e.adjustStakedValue(ctx, lc, ev.To, token, false)
	case model.ActionStake:
		return e.adjustStakedValue(ctx, lc, ev.From, token, true)
	}
	return nil
}

// adjustStakedValue moves the token's value, scaled down from wei, into or
// out of the holder's referral staked value.
func (e *Engine) adjustStakedValue(ctx context.Context, lc *logContext, holder common.Address, token model.Token, stake bool) error {
	referral, ok, err := e.findReferral(ctx, lc, holder)
	if err != nil || !ok {
		return err
	}

	value, err := parseTokenValue(token.TokenValue)
	if err != nil {
		return fmt.Errorf("token %s: %w", token.TokenID, err)
	}
	units := value.Shift(-tokenDecimals)

	staked := decimal.NewFromInt(referral.StakedValue)
	if stake {
		staked = staked.Add(units)
	} else {
		staked = staked.Sub(units)
	}

	if err := lc.tx.UpdateReferralStakedValue(ctx, referral.ID, staked.Round(0).IntPart()); err != nil {
		return fmt.Errorf("update referral %d staked value: %w", referral.ID, err)
	}
	return nil
}

func (e *Engine) applyClaim(ctx context.Context, lc *logContext, ev sft.Claim) error {
	if err := e.writeEventLog(ctx, lc, model.ActionClaim); err != nil {
		return err
	}
	if lc.fund == nil {
		e.diag.Miss(MissFund, lc.fields()...)
		return nil
	}

	wallet, ok, err := e.findWallet(ctx, lc, ev.Owner)
	if err != nil || !ok {
		return err
	}

	balance := decimal.NewFromBigInt(ev.Amount, -tokenDecimals).Round(0)
	record := model.ClaimedRewardRecord{
		UserID:         wallet.UserID,
		FundID:         lc.fund.ID,
		Chain:          lc.fund.Chain,
		RewardCurrency: lc.fund.BaseCurrency,
		Balance:        balance.String(),
	}
	if err := lc.tx.CreateClaimedReward(ctx, &record); err != nil {
		return fmt.Errorf("create claimed reward: %w", err)
	}

	if _, err := lc.tx.FindReferralByUser(ctx, wallet.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.diag.Miss(MissReferral, lc.fields(zap.Int64("user_id", wallet.UserID))...)
			return nil
		}
		return fmt.Errorf("find referral for user %d: %w", wallet.UserID, err)
	}

	exp := balance.Mul(decimal.NewFromInt(claimExpMultiplier)).IntPart()
	lc.earnings = append(lc.earnings, model.EarningRecord{
		Type:          model.EarningTypeClaimReward,
		UserID:        wallet.UserID,
		EarningExp:    exp,
		EarningPoints: 0,
		Receipt: model.EarningReceipt{
			UserID: wallet.UserID,
			Exp:    exp,
			Points: 0,
		},
	})
	return nil
}

func (e *Engine) findToken(ctx context.Context, lc *logContext, tokenID *big.Int) (model.Token, bool, error) {
	id := sft.TokenIDHex(tokenID)
	token, err := lc.tx.FindToken(ctx, lc.fund.SFTAddress, id)
	if errors.Is(err, store.ErrNotFound) {
		e.diag.Miss(MissToken, lc.fields(zap.String("token_id", id))...)
		return model.Token{}, false, nil
	}
	if err != nil {
		return model.Token{}, false, fmt.Errorf("find token %s: %w", id, err)
	}
	return token, true, nil
}

func (e *Engine) findWallet(ctx context.Context, lc *logContext, addr common.Address) (model.Wallet, bool, error) {
	wallet, err := lc.tx.FindWalletByAddress(ctx, addr.Hex())
	if errors.Is(err, store.ErrNotFound) {
		e.diag.Miss(MissWallet, lc.fields(zap.String("address", addr.Hex()))...)
		return model.Wallet{}, false, nil
	}
	if err != nil {
		return model.Wallet{}, false, fmt.Errorf("find wallet %s: %w", addr.Hex(), err)
	}
	return wallet, true, nil
}

func (e *Engine) findReferral(ctx context.Context, lc *logContext, holder common.Address) (model.Referral, bool, error) {
	wallet, ok, err := e.findWallet(ctx, lc, holder)
	if err != nil || !ok {
		return model.Referral{}, false, err
	}
	referral, err := lc.tx.FindReferralByUser(ctx, wallet.UserID)
	if errors.Is(err, store.ErrNotFound) {
		e.diag.Miss(MissReferral, lc.fields(zap.Int64("user_id", wallet.UserID))...)
		return model.Referral{}, false, nil
	}
	if err != nil {
		return model.Referral{}, false, fmt.Errorf("find referral for user %d: %w", wallet.UserID, err)
	}
	return referral, true, nil
}

// parseTokenValue reads a stored token value. Empty means zero.
func parseTokenValue(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse token value %q: %w", raw, err)
	}
	return value, nil
}
