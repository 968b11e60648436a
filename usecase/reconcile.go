package usecase

import (
	"gmptracker/domain"
	"gmptracker/domain/util"
	"strings"
	"time"
)

const (
	displayLimit = 256

	hintNotEnoughGas      = "Not enough gas"
	hintMaybeNotEnoughGas = "Can be not enough gas"
)

// Engine derives a Snapshot from a polled record. It holds no state between
// calls, so the same inputs always produce the same snapshot.
type Engine struct {
	policy    domain.Policy
	reference domain.ReferenceData
}

func NewEngine(policy domain.Policy, reference domain.ReferenceData) *Engine {
	return &Engine{
		policy:    policy,
		reference: reference,
	}
}

func (engine *Engine) Policy() domain.Policy {
	return engine.policy
}

// Reconcile never fails: every missing or malformed input degrades to its
// zero value. A nil record yields a not-found snapshot.
func (engine *Engine) Reconcile(txHash string, record *domain.GMPRecord, links domain.Links, now time.Time, editable bool) domain.Snapshot {
	snapshot := domain.Snapshot{TxHash: txHash}
	if record == nil {
		return snapshot
	}

	c := normalize(record, engine.policy)

	snapshot.Found = true
	snapshot.Record = record
	snapshot.Links = links
	snapshot.Status = record.Status
	snapshot.IsNotEnoughGas = c.isNotEnoughGas
	snapshot.NoGasRemain = c.noGasRemain

	snapshot.GasCost = engine.gasCost(c, links)
	snapshot.Steps = engine.buildSteps(c, now)
	for i := range snapshot.Steps {
		switch snapshot.Steps[i].ID {
		case domain.StepApproved:
			snapshot.Steps[i].GasCost = snapshot.GasCost.Approved
		case domain.StepForecalled:
			snapshot.Steps[i].GasCost = snapshot.GasCost.Forecalled
		case domain.StepExecuted:
			snapshot.Steps[i].GasCost = snapshot.GasCost.Executed
		}
	}
	snapshot.CurrentStep = engine.currentStep(c, snapshot.Steps, now)
	snapshot.Eligibility = engine.eligibility(c, now, editable)

	if record.Call != nil {
		snapshot.Method = record.Call.Event
		snapshot.CallAmount = engine.callAmount(record.Call.ReturnValues)
		callTs, _ := record.Call.Timestamp()
		if ts, ok := record.Executed.Timestamp(); ok {
			snapshot.TimeSpent = util.TotalTimeString(callTs, ts)
		}
		if ts, ok := record.Forecalled.Timestamp(); ok {
			snapshot.ForecallTimeSpent = util.TotalTimeString(callTs, ts)
		}
	}
	snapshot.ExecuteMethod, snapshot.ExecuteData = executeCalldata(record)

	snapshot.NoRefund = c.noGasRemain &&
		(record.Refunded == nil || !record.Refunded.Receipt.Succeeded()) &&
		(record.Executed != nil || record.Error != nil)

	if record.Executed == nil && record.Error != nil {
		snapshot.ExecutionError = errorDisplay(record.Error.Error, c.isNotEnoughGas)
	}
	if record.Refunded != nil && !record.Refunded.Receipt.Succeeded() {
		snapshot.RefundError = errorDisplay(record.Refunded.Error, false)
	}

	if editable {
		snapshot.Corrections = correctionTargets(c, snapshot.Eligibility)
	}
	return snapshot
}

func (engine *Engine) chainName(id string) string {
	if id == "" || engine.reference == nil {
		return id
	}
	if chain, exist := engine.reference.Chain(id); exist && chain.Name != "" {
		return chain.Name
	}
	return id
}

func (engine *Engine) callAmount(values domain.ReturnValues) string {
	amount := values.Amount.Int()
	if amount == nil || values.Symbol == "" {
		return ""
	}
	decimals := defaultDecimals
	symbol := values.Symbol
	if engine.reference != nil {
		if asset, exist := engine.reference.Asset(values.Symbol); exist {
			if asset.Decimals > 0 {
				decimals = asset.Decimals
			}
			if asset.Symbol != "" {
				symbol = asset.Symbol
			}
		}
	}
	return util.AmountString(formatUnits(amount, decimals), symbol)
}

func errorDisplay(detail *domain.ErrorDetail, notEnoughGas bool) *domain.ErrorDisplay {
	if detail == nil && !notEnoughGas {
		return nil
	}
	display := &domain.ErrorDisplay{}
	if detail != nil {
		message := detail.Message
		if detail.Data != nil && detail.Data.Message != "" {
			message = detail.Data.Message
		}
		display.Message = util.Truncate(message, displayLimit)
		if detail.Reason != "" {
			display.Reason = util.Truncate("Reason: "+detail.Reason, displayLimit)
		}
		display.Code = util.Truncate(string(detail.Code), displayLimit)
		display.Body = util.Truncate(strings.ReplaceAll(detail.Body, `"""`, ""), displayLimit)
	}
	if notEnoughGas {
		display.NotEnoughGas = hintNotEnoughGas
		if detail != nil && detail.Reason == "transaction failed" {
			display.NotEnoughGas = hintMaybeNotEnoughGas
		}
	}
	return display
}

// correctionTargets lists the steps an operator may fix by hand: the
// execution when the indexer missed it, and the refund.
func correctionTargets(c canonical, eligibility domain.Eligibility) []domain.CorrectionTarget {
	targets := make([]domain.CorrectionTarget, 0, 2)

	switch {
	case c.Executed != nil:
		targets = append(targets, domain.CorrectionTarget{
			Step:    domain.StepExecuted,
			Event:   domain.SaveEventReExecute,
			Hash:    c.Executed.Hash(),
			Relayer: c.Executed.Sender(),
		})
	case c.executionDetected():
		target := domain.CorrectionTarget{
			Step:     domain.StepExecuted,
			Event:    domain.SaveEventNotExecuted,
			Editable: true,
		}
		if c.Error != nil {
			target.Hash = c.Error.Hash()
			target.Relayer = c.Error.Sender()
		}
		targets = append(targets, target)
	case eligibility.Execute:
		targets = append(targets, domain.CorrectionTarget{
			Step:     domain.StepExecuted,
			Editable: true,
		})
	}

	if c.Refunded != nil || c.Executed != nil || c.executionDetected() {
		target := domain.CorrectionTarget{
			Step:     domain.StepRefunded,
			Event:    domain.SaveEventRefunded,
			Editable: c.Refunded == nil || c.Refunded.Error != nil,
		}
		if c.Refunded != nil {
			target.Hash = c.Refunded.Hash()
			target.Relayer = c.Refunded.Sender()
		}
		targets = append(targets, target)
	}
	return targets
}
