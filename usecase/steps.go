package usecase

import (
	"gmptracker/domain"
	"time"
)

const (
	titleCall       = "Contract Call"
	titleGasPaid    = "Gas Paid"
	titleForecalled = "Express Execute"
	titleApproved   = "Call Approved"
	titleExecuted   = "Executed"
	titleRefunded   = "Gas Refunded"
)

func (engine *Engine) buildSteps(c canonical, now time.Time) []domain.Step {
	source := engine.chainName(c.sourceChain())
	destination := engine.chainName(c.destinationChain())

	steps := make([]domain.Step, 0, 6)
	steps = append(steps, observedOrPending(domain.StepCall, titleCall, source, c.Call))
	steps = append(steps, observedOrPending(domain.StepGasPaid, titleGasPaid, source, c.GasPaid))
	if c.Forecalled != nil {
		steps = append(steps, domain.ObservedStep(domain.StepForecalled, titleForecalled, destination, c.Forecalled))
	}
	steps = append(steps, observedOrPending(domain.StepApproved, titleApproved, destination, c.Approved))
	steps = append(steps, engine.executedStep(c, destination, now))
	if c.Refunded != nil && (c.Refunded.Receipt.Succeeded() || !c.noGasRemain) {
		steps = append(steps, refundedStep(c, source))
	}
	return steps
}

func observedOrPending(id domain.StepID, title, chain string, event *domain.Event) domain.Step {
	if event == nil {
		return domain.PendingStep(id, title, chain)
	}
	return domain.ObservedStep(id, title, chain, event)
}

// executedStep prefers the executed event. A failed attempt is only shown
// once it is old enough that an automatic retry is unlikely to replace it.
func (engine *Engine) executedStep(c canonical, chain string, now time.Time) domain.Step {
	if c.Executed != nil {
		return domain.ObservedStep(domain.StepExecuted, titleExecuted, chain, c.Executed)
	}
	if c.Error != nil {
		ts, ok := c.errorTimestamp()
		if !ok || elapsed(ts, now) >= engine.policy.ErrorDisplayDelay {
			return domain.FailedStep(domain.StepExecuted, titleExecuted, chain, c.Error)
		}
	}
	step := domain.PendingStep(domain.StepExecuted, titleExecuted, chain)
	step.Detected = domain.IsTrue(c.IsExecuted)
	return step
}

func refundedStep(c canonical, chain string) domain.Step {
	refund := c.Refunded
	if refund.Error != nil || (refund.Receipt.StatusKnown() && !refund.Receipt.Succeeded()) {
		return domain.FailedStep(domain.StepRefunded, titleRefunded, chain, refund)
	}
	if refundIsStale(c) {
		step := domain.PendingStep(domain.StepRefunded, titleRefunded, chain)
		step.Event = refund
		return step
	}
	return domain.ObservedStep(domain.StepRefunded, titleRefunded, chain, refund)
}

// refundIsStale reports a refund that predates the latest gas payment.
func refundIsStale(c canonical) bool {
	refundTs, ok := c.Refunded.Timestamp()
	if !ok {
		return false
	}
	paidTs, ok := c.GasPaid.Timestamp()
	return ok && refundTs < paidTs
}

func stepIndex(steps []domain.Step, id domain.StepID) int {
	for i, step := range steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}

// currentStep points one past the last step considered done.
func (engine *Engine) currentStep(c canonical, steps []domain.Step, now time.Time) int {
	switch c.Status {
	case domain.StatusCalled:
		paid := c.gasPaid || domain.IsTrue(c.IsCallFromRelayer)
		target := domain.StepCall
		if paid {
			target = domain.StepGasPaid
		}
		current := stepIndex(steps, target)
		if paid && !c.HasInvalidFlag() {
			current++
		}
		return current

	case domain.StatusForecalled:
		return stepIndex(steps, domain.StepForecalled) + 1

	case domain.StatusApproved, domain.StatusExecuting:
		target := domain.StepCall
		if c.gasPaid {
			target = domain.StepApproved
		}
		return stepIndex(steps, target) + 1

	case domain.StatusExecuted, domain.StatusError:
		current := stepIndex(steps, domain.StepExecuted)
		if c.Executed != nil {
			return current + 1
		}
		if c.Error != nil {
			if ts, ok := c.errorTimestamp(); ok && elapsed(ts, now) >= engine.policy.ErrorGracePeriod {
				return current + 1
			}
		}
		return current
	}
	return 0
}
