package usecase

import (
	"gmptracker/domain"
	"time"
)

func (engine *Engine) eligibility(c canonical, now time.Time, editable bool) domain.Eligibility {
	var e domain.Eligibility
	e.Approve = engine.canApprove(c, now)
	e.Execute = engine.canExecute(c, now)
	e.AddGas = engine.canAddGas(c)
	e.Refund = !e.Approve && !e.Execute && engine.canRefund(c, now, editable)
	return e
}

func (engine *Engine) canApprove(c canonical, now time.Time) bool {
	if c.Call == nil || c.Approved != nil || c.Executed != nil || domain.IsTrue(c.IsExecuted) {
		return false
	}
	if c.HasInvalidFlag() || c.GasRemain().Less(engine.policy.ApproveDustThreshold) {
		return false
	}
	ts, ok := c.Call.Timestamp()
	if !ok {
		return false
	}
	return wholeMinutes(elapsed(ts, now)) >= engine.policy.ApproveDelayFor(c.Call.Chain)
}

func (engine *Engine) canExecute(c canonical, now time.Time) bool {
	if c.Payload() == "" || c.Approved == nil || c.Executed != nil || domain.IsTrue(c.IsExecuted) {
		return false
	}
	if c.Error != nil {
		return true
	}
	ts, ok := c.Approved.Timestamp()
	return ok && wholeMinutes(elapsed(ts, now)) >= engine.policy.ExecuteDelay
}

func (engine *Engine) canAddGas(c canonical) bool {
	if c.Executed != nil || domain.IsTrue(c.IsExecuted) {
		return false
	}
	return c.isNotEnoughGas ||
		!c.gasPaid ||
		domain.IsTrue(c.IsInsufficientFee) ||
		c.GasRemain().Less(engine.policy.AddGasDustThreshold)
}

func (engine *Engine) canRefund(c canonical, now time.Time, editable bool) bool {
	if c.Call == nil || c.noGasRemain {
		return false
	}
	invalid := c.HasInvalidFlag()
	terminal := c.Executed != nil || c.Error != nil || domain.IsTrue(c.IsExecuted) || invalid
	if !terminal {
		return false
	}
	stale := invalid
	if ts, ok := c.Approved.Timestamp(); ok && elapsed(ts, now) > engine.policy.RefundStaleAfter {
		stale = true
	}
	if !stale {
		return false
	}
	if refundSettled(c) {
		return false
	}
	return editable || engine.refundWorthIt(c)
}

// refundSettled reports a refund that already went through for the latest
// gas payment.
func refundSettled(c canonical) bool {
	refund := c.Refunded
	if refund == nil || refund.Error != nil {
		return false
	}
	if refund.Receipt.StatusKnown() && !refund.Receipt.Succeeded() {
		return false
	}
	return !refundIsStale(c)
}

// refundWorthIt is the profitability heuristic: enough gas remains, either
// relative to what was paid or in USD, or the call was underpaid while the
// payment itself is worth returning.
func (engine *Engine) refundWorthIt(c canonical) bool {
	p := engine.policy
	if c.Gas == nil {
		return false
	}
	remain := c.Gas.GasRemainAmount
	paid := c.Gas.GasPaidAmount
	if !remain.AtLeast(p.RefundMinRemain) {
		return false
	}

	var sourceUSD domain.FlexFloat
	if c.Fees != nil {
		sourceUSD = tokenUSD(c.Fees.SourceToken)
	}

	if paid.Valid && paid.V > 0 && remain.V/paid.V > p.RefundRemainRatio {
		return true
	}
	if sourceUSD.Valid && remain.V*sourceUSD.V > p.RefundMinUSD {
		return true
	}

	baseFee := c.Gas.GasBaseFeeAmount
	return domain.IsTrue(c.IsInsufficientFee) &&
		paid.Valid && baseFee.Valid && paid.V < baseFee.V &&
		sourceUSD.Valid && paid.V*sourceUSD.V > p.RefundMinUSD
}
