package domain

// Eligibility lists the recovery actions valid for one snapshot.
type Eligibility struct {
	Approve bool `json:"approve"`
	Execute bool `json:"execute"`
	AddGas  bool `json:"add_gas"`
	Refund  bool `json:"refund"`
}

func (e Eligibility) Allows(action Action) bool {
	switch action {
	case ActionApprove:
		return e.Approve
	case ActionExecute:
		return e.Execute
	case ActionAddGas:
		return e.AddGas
	case ActionRefund:
		return e.Refund
	}
	return false
}

// GasCost holds the per-step gas spend, in source token units.
type GasCost struct {
	Approved   float64 `json:"approved"`
	Executed   float64 `json:"executed"`
	Forecalled float64 `json:"forecalled"`
	Callback   float64 `json:"callback"`
}

// ErrorDisplay is a revert prepared for display; every field is capped.
type ErrorDisplay struct {
	Code         string `json:"code,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	Body         string `json:"body,omitempty"`
	NotEnoughGas string `json:"not_enough_gas,omitempty"`
}

// CorrectionTarget is a step an operator may correct by hand.
type CorrectionTarget struct {
	Step StepID `json:"step"`
	// Event is the tag sent along with a correction for this step.
	Event string `json:"event,omitempty"`
	// Hash and Relayer are what a refresh re-submits.
	Hash    string `json:"hash,omitempty"`
	Relayer string `json:"relayer,omitempty"`
	// Editable is set when a new hash may be typed in, not only refreshed.
	Editable bool `json:"editable"`
}

// Snapshot is the fully derived, immutable view of one poll.
type Snapshot struct {
	TxHash string     `json:"tx_hash"`
	Found  bool       `json:"found"`
	Record *GMPRecord `json:"record,omitempty"`
	Links  Links      `json:"links"`
	Status Status     `json:"status,omitempty"`

	IsNotEnoughGas bool `json:"is_not_enough_gas"`
	NoGasRemain    bool `json:"no_gas_remain"`

	Steps       []Step      `json:"steps"`
	CurrentStep int         `json:"current_step"`
	Eligibility Eligibility `json:"eligibility"`
	GasCost     GasCost     `json:"gas_cost"`

	Method        string `json:"method,omitempty"`
	CallAmount    string `json:"call_amount,omitempty"`
	ExecuteMethod string `json:"execute_method,omitempty"`
	ExecuteData   string `json:"execute_data,omitempty"`

	TimeSpent         string `json:"time_spent,omitempty"`
	ForecallTimeSpent string `json:"forecall_time_spent,omitempty"`

	NoRefund       bool          `json:"no_refund"`
	ExecutionError *ErrorDisplay `json:"execution_error,omitempty"`
	RefundError    *ErrorDisplay `json:"refund_error,omitempty"`

	Corrections []CorrectionTarget `json:"corrections,omitempty"`
}

func (s *Snapshot) Step(id StepID) (Step, bool) {
	if s == nil {
		return Step{}, false
	}
	for _, step := range s.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return Step{}, false
}

func (s *Snapshot) Correction(id StepID) (CorrectionTarget, bool) {
	if s == nil {
		return CorrectionTarget{}, false
	}
	for _, c := range s.Corrections {
		if c.Step == id {
			return c, true
		}
	}
	return CorrectionTarget{}, false
}
