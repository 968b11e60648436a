package domain

type StepID string

const (
	StepCall       StepID = "call"
	StepGasPaid    StepID = "gas_paid"
	StepForecalled StepID = "forecalled"
	StepApproved   StepID = "approved"
	StepExecuted   StepID = "executed"
	StepRefunded   StepID = "refunded"
)

// StepState tags which variant of Step is populated.
type StepState int

const (
	// StepPending: nothing indexed yet for this step.
	StepPending StepState = iota
	// StepObserved: Event holds the indexed event.
	StepObserved
	// StepFailed: Event holds the failed attempt, Error its revert details.
	StepFailed
)

func (s StepState) String() string {
	switch s {
	case StepObserved:
		return "observed"
	case StepFailed:
		return "failed"
	}
	return "pending"
}

func (s StepState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Step struct {
	ID    StepID       `json:"id"`
	Title string       `json:"title"`
	Chain string       `json:"chain,omitempty"`
	State StepState    `json:"state"`
	Event *Event       `json:"event,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`

	// Detected marks an execution the indexer flagged while the executing
	// transaction itself has not been correlated yet.
	Detected bool `json:"detected,omitempty"`

	// GasCost is the step's gas spend priced in the source token.
	GasCost float64 `json:"gas_cost,omitempty"`
}

func PendingStep(id StepID, title, chain string) Step {
	return Step{ID: id, Title: title, Chain: chain, State: StepPending}
}

func ObservedStep(id StepID, title, chain string, event *Event) Step {
	return Step{ID: id, Title: title, Chain: chain, State: StepObserved, Event: event}
}

func FailedStep(id StepID, title, chain string, event *Event) Step {
	var detail *ErrorDetail
	if event != nil {
		detail = event.Error
	}
	return Step{ID: id, Title: title, Chain: chain, State: StepFailed, Event: event, Error: detail}
}

func (s Step) Complete() bool {
	return s.State == StepObserved
}
