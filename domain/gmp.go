package domain

import (
	"strings"
)

type Status string

const (
	StatusCalled     Status = "called"
	StatusForecalled Status = "forecalled"
	StatusApproved   Status = "approved"
	StatusExecuting  Status = "executing"
	StatusExecuted   Status = "executed"
	StatusError      Status = "error"
)

// rank orders statuses along the lifecycle. Unknown statuses rank lowest.
func (s Status) rank() int {
	switch s {
	case StatusCalled:
		return 1
	case StatusForecalled:
		return 2
	case StatusApproved:
		return 3
	case StatusExecuting:
		return 4
	case StatusExecuted, StatusError:
		return 5
	}
	return 0
}

const (
	EventContractCall          = "ContractCall"
	EventContractCallWithToken = "ContractCallWithToken"
)

type ReturnValues struct {
	Sender                     string   `json:"sender,omitempty"`
	DestinationChain           string   `json:"destinationChain,omitempty"`
	DestinationContractAddress string   `json:"destinationContractAddress,omitempty"`
	Payload                    string   `json:"payload,omitempty"`
	PayloadHash                string   `json:"payloadHash,omitempty"`
	Symbol                     string   `json:"symbol,omitempty"`
	Amount                     BigValue `json:"amount"`
	CommandID                  string   `json:"commandId,omitempty"`
	SourceChain                string   `json:"sourceChain,omitempty"`
	SourceAddress              string   `json:"sourceAddress,omitempty"`
	ContractAddress            string   `json:"contractAddress,omitempty"`
	GasToken                   string   `json:"gasToken,omitempty"`
	GasFeeAmount               BigValue `json:"gasFeeAmount"`
	RefundAddress              string   `json:"refundAddress,omitempty"`
}

type Transaction struct {
	Hash     string   `json:"hash,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	GasPrice BigValue `json:"gasPrice"`
	GasLimit BigValue `json:"gasLimit"`
}

type Receipt struct {
	TransactionHash   string   `json:"transactionHash,omitempty"`
	From              string   `json:"from,omitempty"`
	GasUsed           BigValue `json:"gasUsed"`
	EffectiveGasPrice BigValue `json:"effectiveGasPrice"`
	Status            FlexInt  `json:"status"`
}

func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status.Valid && r.Status.V != 0
}

// StatusKnown reports whether the receipt carries a numeric status at all.
func (r *Receipt) StatusKnown() bool {
	return r != nil && r.Status.Valid
}

type ErrorData struct {
	Message string `json:"message,omitempty"`
	Text    string `json:"text,omitempty"`
}

// ErrorDetail is the revert information the indexer attached to a failed
// execution or refund.
type ErrorDetail struct {
	Reason  string     `json:"reason,omitempty"`
	Code    FlexString `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
	Body    string     `json:"body,omitempty"`
	Data    *ErrorData `json:"data,omitempty"`
}

// Event is one on-chain log correlated to the GMP call.
type Event struct {
	Chain            string       `json:"chain,omitempty"`
	ChainID          FlexString   `json:"chain_id,omitempty"`
	Event            string       `json:"event,omitempty"`
	ContractAddress  string       `json:"contract_address,omitempty"`
	TransactionHash  string       `json:"transactionHash,omitempty"`
	TransactionIndex FlexInt      `json:"transactionIndex"`
	LogIndex         FlexInt      `json:"logIndex"`
	BlockNumber      FlexInt      `json:"blockNumber"`
	BlockTimestamp   FlexInt      `json:"block_timestamp"`
	ReturnValues     ReturnValues `json:"returnValues"`
	Transaction      *Transaction `json:"transaction,omitempty"`
	Receipt          *Receipt     `json:"receipt,omitempty"`
	Error            *ErrorDetail `json:"error,omitempty"`
	Amount           FlexFloat    `json:"amount"`
	To               string       `json:"to,omitempty"`
}

// Hash returns the event transaction hash, falling back to the receipt's.
func (e *Event) Hash() string {
	if e == nil {
		return ""
	}
	if e.TransactionHash != "" {
		return e.TransactionHash
	}
	if e.Receipt != nil {
		return e.Receipt.TransactionHash
	}
	return ""
}

// Timestamp returns the block timestamp in unix seconds and whether it is known.
func (e *Event) Timestamp() (int64, bool) {
	if e == nil || !e.BlockTimestamp.Valid || e.BlockTimestamp.V <= 0 {
		return 0, false
	}
	return e.BlockTimestamp.V, true
}

func (e *Event) Sender() string {
	if e == nil {
		return ""
	}
	if e.Receipt != nil && e.Receipt.From != "" {
		return e.Receipt.From
	}
	if e.Transaction != nil {
		return e.Transaction.From
	}
	return ""
}

type GasInfo struct {
	GasPaidAmount     FlexFloat `json:"gas_paid_amount"`
	GasRemainAmount   FlexFloat `json:"gas_remain_amount"`
	GasBaseFeeAmount  FlexFloat `json:"gas_base_fee_amount"`
	GasCallbackAmount FlexFloat `json:"gas_callback_amount"`
}

type TokenPrice struct {
	USD FlexFloat `json:"usd"`
}

type Token struct {
	Symbol     string     `json:"symbol,omitempty"`
	Decimals   FlexInt    `json:"decimals"`
	TokenPrice TokenPrice `json:"token_price"`
}

// PriceRate pairs the source and destination native token prices captured at
// the time of a step.
type PriceRate struct {
	SourceToken            *Token `json:"source_token,omitempty"`
	DestinationNativeToken *Token `json:"destination_native_token,omitempty"`
}

type Fees struct {
	SourceToken            *Token    `json:"source_token,omitempty"`
	DestinationNativeToken *Token    `json:"destination_native_token,omitempty"`
	BaseFee                FlexFloat `json:"base_fee"`
	DestinationBaseFee     FlexFloat `json:"destination_base_fee"`
}

// GMPRecord is one record as returned by searchGMP.
type GMPRecord struct {
	Call                     *Event     `json:"call,omitempty"`
	GasPaid                  *Event     `json:"gas_paid,omitempty"`
	GasPaidToCallback        *Event     `json:"gas_paid_to_callback,omitempty"`
	GasAddedTransactions     []Event    `json:"gas_added_transactions,omitempty"`
	Forecalled               *Event     `json:"forecalled,omitempty"`
	Approved                 *Event     `json:"approved,omitempty"`
	Executed                 *Event     `json:"executed,omitempty"`
	Error                    *Event     `json:"error,omitempty"`
	Refunded                 *Event     `json:"refunded,omitempty"`
	RefundedMoreTransactions []Event    `json:"refunded_more_transactions,omitempty"`
	Fees                     *Fees      `json:"fees,omitempty"`
	Gas                      *GasInfo   `json:"gas,omitempty"`
	GasPriceRate             *PriceRate `json:"gas_price_rate,omitempty"`
	ForecallGasPriceRate     *PriceRate `json:"forecall_gas_price_rate,omitempty"`
	Status                   Status     `json:"status,omitempty"`

	// Callback references the return leg of a two-way call. Only the
	// transaction triple is filled in by the indexer.
	Callback *Event `json:"callback,omitempty"`

	IsInvalidDestinationChain   *bool `json:"is_invalid_destination_chain,omitempty"`
	IsInvalidCall               *bool `json:"is_invalid_call,omitempty"`
	IsInsufficientMinimumAmount *bool `json:"is_insufficient_minimum_amount,omitempty"`
	IsInsufficientFee           *bool `json:"is_insufficient_fee,omitempty"`
	IsExecuted                  *bool `json:"is_executed,omitempty"`
	IsCallFromRelayer           *bool `json:"is_call_from_relayer,omitempty"`
	IsExecuteFromRelayer        *bool `json:"is_execute_from_relayer,omitempty"`
	IsErrorFromRelayer          *bool `json:"is_error_from_relayer,omitempty"`
	IsNotEnoughGas              *bool `json:"is_not_enough_gas,omitempty"`
	NoGasRemain                 *bool `json:"no_gas_remain,omitempty"`
}

// Links holds the records correlated to the primary one by secondary lookups.
type Links struct {
	Callback *GMPRecord `json:"callback,omitempty"`
	Origin   *GMPRecord `json:"origin,omitempty"`
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

func IsFalse(b *bool) bool {
	return b != nil && !*b
}

func BoolPtr(b bool) *bool {
	return &b
}

// HasInvalidFlag reports whether the indexer marked the call as one that can
// never be relayed as is.
func (r *GMPRecord) HasInvalidFlag() bool {
	return IsTrue(r.IsInvalidDestinationChain) ||
		IsTrue(r.IsInvalidCall) ||
		IsTrue(r.IsInsufficientMinimumAmount) ||
		IsTrue(r.IsInsufficientFee)
}

// GasRemain returns the unspent prepaid gas amount.
func (r *GMPRecord) GasRemain() FlexFloat {
	if r.Gas == nil {
		return FlexFloat{}
	}
	return r.Gas.GasRemainAmount
}

func (r *GMPRecord) Payload() string {
	if r.Call == nil {
		return ""
	}
	return r.Call.ReturnValues.Payload
}

func EqualHash(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// Merge folds a freshly polled record into the one observed before.
// Steps already observed are kept when the new poll omits them, the call is
// immutable once seen, and the plural transaction lists are unioned.
func (r *GMPRecord) Merge(next *GMPRecord) *GMPRecord {
	if r == nil {
		return next
	}
	if next == nil {
		return r
	}

	merged := *next
	if r.Call != nil {
		merged.Call = r.Call
	}
	merged.GasPaid = keepEvent(r.GasPaid, next.GasPaid)
	merged.GasPaidToCallback = keepEvent(r.GasPaidToCallback, next.GasPaidToCallback)
	merged.Forecalled = keepEvent(r.Forecalled, next.Forecalled)
	merged.Approved = keepEvent(r.Approved, next.Approved)
	merged.Executed = keepEvent(r.Executed, next.Executed)
	merged.Error = keepEvent(r.Error, next.Error)
	merged.Refunded = keepEvent(r.Refunded, next.Refunded)
	merged.Callback = keepEvent(r.Callback, next.Callback)

	merged.GasAddedTransactions = unionEvents(r.GasAddedTransactions, next.GasAddedTransactions)
	merged.RefundedMoreTransactions = unionEvents(r.RefundedMoreTransactions, next.RefundedMoreTransactions)

	if merged.Fees == nil {
		merged.Fees = r.Fees
	}
	if merged.Gas == nil {
		merged.Gas = r.Gas
	}
	if merged.GasPriceRate == nil {
		merged.GasPriceRate = r.GasPriceRate
	}
	if merged.ForecallGasPriceRate == nil {
		merged.ForecallGasPriceRate = r.ForecallGasPriceRate
	}

	merged.Status = mergeStatus(r.Status, next.Status)

	merged.IsInvalidDestinationChain = keepFlag(r.IsInvalidDestinationChain, next.IsInvalidDestinationChain)
	merged.IsInvalidCall = keepFlag(r.IsInvalidCall, next.IsInvalidCall)
	merged.IsInsufficientMinimumAmount = keepFlag(r.IsInsufficientMinimumAmount, next.IsInsufficientMinimumAmount)
	merged.IsInsufficientFee = keepFlag(r.IsInsufficientFee, next.IsInsufficientFee)
	merged.IsExecuted = keepFlag(r.IsExecuted, next.IsExecuted)
	merged.IsCallFromRelayer = keepFlag(r.IsCallFromRelayer, next.IsCallFromRelayer)
	merged.IsExecuteFromRelayer = keepFlag(r.IsExecuteFromRelayer, next.IsExecuteFromRelayer)
	merged.IsErrorFromRelayer = keepFlag(r.IsErrorFromRelayer, next.IsErrorFromRelayer)
	merged.IsNotEnoughGas = keepFlag(r.IsNotEnoughGas, next.IsNotEnoughGas)
	merged.NoGasRemain = keepFlag(r.NoGasRemain, next.NoGasRemain)

	return &merged
}

// mergeStatus refuses to move backwards, except that a failed execution may
// return to approved/executing when it is being retried.
func mergeStatus(prev, next Status) Status {
	if next == "" {
		return prev
	}
	if next.rank() >= prev.rank() {
		return next
	}
	if prev == StatusError && (next == StatusApproved || next == StatusExecuting) {
		return next
	}
	return prev
}

func keepEvent(prev, next *Event) *Event {
	if next != nil {
		return next
	}
	return prev
}

func keepFlag(prev, next *bool) *bool {
	if next != nil {
		return next
	}
	return prev
}

func unionEvents(prev, next []Event) []Event {
	if len(prev) == 0 {
		return next
	}
	out := make([]Event, 0, len(prev)+len(next))
	seen := make(map[string]int, len(prev)+len(next))
	for _, list := range [][]Event{prev, next} {
		for _, e := range list {
			key := strings.ToLower(e.Hash())
			if i, exist := seen[key]; exist && key != "" {
				out[i] = e
				continue
			}
			seen[key] = len(out)
			out = append(out, e)
		}
	}
	return out
}
