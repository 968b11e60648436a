package usecase

import (
	"gmptracker/domain"
	"math/big"
	"time"
)

// canonical is a record with its derived flags resolved once per poll.
type canonical struct {
	*domain.GMPRecord

	isNotEnoughGas bool
	noGasRemain    bool
	// gasPaid is direct evidence of a gas payment, on this leg or on the callback.
	gasPaid bool
}

func normalize(r *domain.GMPRecord, policy domain.Policy) canonical {
	c := canonical{GMPRecord: r}
	c.gasPaid = r.GasPaid != nil || r.GasPaidToCallback != nil

	c.isNotEnoughGas = domain.IsTrue(r.IsNotEnoughGas) || gasUsedRatio(r.Error) > policy.NotEnoughGasRatio

	c.noGasRemain = r.GasRemain().Less(policy.NoGasRemainThreshold)
	if !c.noGasRemain {
		if r.NoGasRemain != nil {
			c.noGasRemain = *r.NoGasRemain
		} else {
			c.noGasRemain = r.Refunded != nil && !r.Refunded.Receipt.Succeeded()
		}
	}
	return c
}

// gasUsedRatio is gasUsed / gasLimit of a failed execution, 0 when unknown.
func gasUsedRatio(e *domain.Event) float64 {
	if e == nil || e.Receipt == nil || e.Transaction == nil {
		return 0
	}
	used := e.Receipt.GasUsed.Int()
	limit := e.Transaction.GasLimit.Int()
	if used == nil || limit == nil || limit.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(new(big.Float).SetInt(used), new(big.Float).SetInt(limit)).Float64()
	return ratio
}

func (c canonical) hasCall() bool {
	return c.Call != nil
}

func (c canonical) sourceChain() string {
	if c.Call == nil {
		return ""
	}
	return c.Call.Chain
}

func (c canonical) destinationChain() string {
	if c.Call == nil {
		return ""
	}
	return c.Call.ReturnValues.DestinationChain
}

// executionDetected is set when the indexer knows of an execution attempt
// that has no correlated executed event.
func (c canonical) executionDetected() bool {
	return c.Executed == nil && (domain.IsTrue(c.IsExecuted) || c.Error != nil)
}

// errorTimestamp is when the last failure happened, falling back to the
// approval when the failed transaction carries no timestamp.
func (c canonical) errorTimestamp() (int64, bool) {
	if ts, ok := c.Error.Timestamp(); ok {
		return ts, true
	}
	return c.Approved.Timestamp()
}

func elapsed(ts int64, now time.Time) time.Duration {
	return now.Sub(time.Unix(ts, 0))
}

// wholeMinutes truncates like a calendar minute difference does.
func wholeMinutes(d time.Duration) time.Duration {
	return d.Truncate(time.Minute)
}
