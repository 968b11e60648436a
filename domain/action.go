package domain

import "time"

type Action string

const (
	ActionApprove Action = "approve"
	ActionExecute Action = "execute"
	ActionAddGas  Action = "add_gas"
	ActionRefund  Action = "refund"
)

var Actions = []Action{ActionApprove, ActionExecute, ActionAddGas, ActionRefund}

func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

const (
	ActionStateIdle    = "idle"
	ActionStatePending = "pending"
	ActionStateSuccess = "success"
	ActionStateFailed  = "failed"
)

// Which explorer a notification's transaction hash belongs to.
const (
	ExplorerSource      = "source"
	ExplorerDestination = "destination"
	ExplorerAxelar      = "axelar"
)

// Event tags understood by saveGMP.
const (
	SaveEventNotExecuted = "not_executed"
	SaveEventReExecute   = "re_execute"
	SaveEventRefunded    = "refunded"
	SaveEventToRefund    = "to_refund"
)

// ActionResponse is the notification state of one recovery action.
type ActionResponse struct {
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
	Explorer string `json:"explorer,omitempty"`

	// Shown is set once a poll completed after the action settled; the next
	// poll start clears the notification.
	Shown bool `json:"-"`
}

func IdleResponse() ActionResponse {
	return ActionResponse{State: ActionStateIdle}
}

func (r ActionResponse) Settled() bool {
	return r.State == ActionStateSuccess || r.State == ActionStateFailed
}

// RelayResponse is what the relay API answers to approve, execute and add gas.
type RelayResponse struct {
	Success bool
	Error   string
	// TxHash is the signCommandTx hash for approvals and the transaction
	// hash for executions and gas top-ups.
	TxHash string
}

// RefundResponse is the parsed answer of a refund request.
type RefundResponse struct {
	Success bool
	Result  string
	Event   string
}

type AddGasOptions struct {
	RefundAddress string `json:"refundAddress,omitempty"`
}

type SearchParams struct {
	TxHash     string `json:"txHash"`
	TxIndex    *int64 `json:"txIndex,omitempty"`
	TxLogIndex *int64 `json:"txLogIndex,omitempty"`
}

type SaveParams struct {
	Method                    string `json:"method"`
	SourceTransactionHash     string `json:"sourceTransactionHash"`
	SourceTransactionIndex    *int64 `json:"sourceTransactionIndex,omitempty"`
	SourceTransactionLogIndex *int64 `json:"sourceTransactionLogIndex,omitempty"`
	TransactionHash           string `json:"transactionHash,omitempty"`
	RelayerAddress            string `json:"relayerAddress,omitempty"`
	Error                     string `json:"error,omitempty"`
	Event                     string `json:"event,omitempty"`
}

// CallTriple builds save parameters identifying the call of a record.
func CallTriple(call *Event) SaveParams {
	params := SaveParams{Method: "saveGMP"}
	if call == nil {
		return params
	}
	params.SourceTransactionHash = call.TransactionHash
	if call.TransactionIndex.Valid {
		v := call.TransactionIndex.V
		params.SourceTransactionIndex = &v
	}
	if call.LogIndex.Valid {
		v := call.LogIndex.V
		params.SourceTransactionLogIndex = &v
	}
	return params
}

// JournalEntry is one settled recovery action or correction.
type JournalEntry struct {
	TxHash      string    `json:"tx_hash"`
	Action      string    `json:"action"`
	State       string    `json:"state"`
	Message     string    `json:"message"`
	RelayTxHash string    `json:"relay_tx_hash"`
	CreateTime  time.Time `json:"create_time"`
	SettleTime  time.Time `json:"settle_time"`
}
