package domain

import (
	"errors"
	"fmt"
)

var (
	ErrorTrackerClosed      = fmt.Errorf("tracker is closed")
	ErrorActionBusy         = fmt.Errorf("another action is in progress")
	ErrorActionNotEligible  = fmt.Errorf("action is not eligible for the current state")
	ErrorUnknownAction      = fmt.Errorf("unknown action")
	ErrorNotEditable        = fmt.Errorf("corrections are not enabled")
	ErrorEmptyHash          = fmt.Errorf("transaction hash must not be empty")
	ErrorInvalidHash        = fmt.Errorf("invalid transaction hash")
	ErrorInvalidAddress     = fmt.Errorf("invalid relayer address")
	ErrorCorrectionInFlight = fmt.Errorf("a correction is already being submitted")
	ErrorNoCorrection       = fmt.Errorf("step cannot be corrected")
	ErrorRecordNotFound     = fmt.Errorf("gmp record not found")
	ErrorAlreadyTracked     = fmt.Errorf("hash is already tracked")
)

// ErrorCode groups tracker errors by what the caller can do about them.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeConflict   ErrorCode = "CONFLICT"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeNetwork    ErrorCode = "NETWORK"
	ErrCodeRelay      ErrorCode = "RELAY"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"
	ErrCodeInternal   ErrorCode = "INTERNAL"
)

type TrackerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Cause   error     `json:"-"`
}

func NewTrackerError(code ErrorCode, txHash string, cause error) *TrackerError {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return &TrackerError{Code: code, Message: message, TxHash: txHash, Cause: cause}
}

func (e *TrackerError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("[%s:%s] %s", e.TxHash, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether trying the same call again may succeed.
func (e *TrackerError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeTimeout:
		return true
	}
	return false
}

// CodeOf maps an error to its code, classifying the plain error vars too.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		return trackerErr.Code
	}
	switch {
	case errors.Is(err, ErrorActionBusy), errors.Is(err, ErrorCorrectionInFlight),
		errors.Is(err, ErrorActionNotEligible), errors.Is(err, ErrorNoCorrection),
		errors.Is(err, ErrorAlreadyTracked):
		return ErrCodeConflict
	case errors.Is(err, ErrorUnknownAction), errors.Is(err, ErrorEmptyHash),
		errors.Is(err, ErrorInvalidHash), errors.Is(err, ErrorInvalidAddress),
		errors.Is(err, ErrorNotEditable):
		return ErrCodeValidation
	case errors.Is(err, ErrorRecordNotFound), errors.Is(err, ErrorTrackerClosed):
		return ErrCodeNotFound
	}
	return ErrCodeInternal
}

// RelayError is the error shape returned by the relay API and by contract
// calls: a revert reason, a plain message, or a nested data payload.
type RelayError struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Message string `json:"message,omitempty"`
		Text    string `json:"text,omitempty"`
	} `json:"data"`
}

func (e *RelayError) Error() string {
	return e.HumanMessage("relay request failed")
}

// HumanMessage picks the most specific text available, falling back to generic.
func (e *RelayError) HumanMessage(generic string) string {
	if e == nil {
		return generic
	}
	for _, s := range []string{e.Reason, e.Data.Message, e.Data.Text, e.Message} {
		if s != "" {
			return s
		}
	}
	return generic
}
