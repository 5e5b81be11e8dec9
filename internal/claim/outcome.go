package claim

import "fmt"

// ErrorKind classifies why a claim was not honored. Every gate failure
// maps onto exactly one kind; the HTTP layer renders them untouched.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "INVALID_REQUEST"
	KindInvalidSignature    ErrorKind = "INVALID_SIGNATURE"
	KindReplayDetected      ErrorKind = "REPLAY_DETECTED"
	KindWrongNetwork        ErrorKind = "WRONG_NETWORK"
	KindInsufficientFunds   ErrorKind = "INSUFFICIENT_FUNDS"
	KindInsufficientReserve ErrorKind = "INSUFFICIENT_RESERVE"
	KindAuthorizationDenied ErrorKind = "AUTHORIZATION_DENIED"
	KindEstimationFailed    ErrorKind = "ESTIMATION_FAILED"
	KindSubmissionFailed    ErrorKind = "SUBMISSION_FAILED"
	KindConfirmationTimeout ErrorKind = "CONFIRMATION_TIMEOUT"
	KindNetworkUnreachable  ErrorKind = "NETWORK_UNREACHABLE"
)

// Outcome is the single pass/fail result of one claim attempt. It is
// built once by the settlement service and never mutated afterwards.
// A CONFIRMATION_TIMEOUT outcome carries the transaction hash even
// though Success is false: the submission is indeterminate, not
// definitely reverted, and the hash lets the caller re-check later.
type Outcome struct {
	Success bool      `json:"success"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Kind    ErrorKind `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Indeterminate reports whether the on-chain effect of the attempt is
// unknown rather than known to have failed.
func (o Outcome) Indeterminate() bool {
	return !o.Success && o.Kind == KindConfirmationTimeout
}

func succeeded(txHash string) Outcome {
	return Outcome{Success: true, TxHash: txHash}
}

func failed(kind ErrorKind, format string, args ...any) Outcome {
	return Outcome{Success: false, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// GatewayError is a structured failure produced by the chain gateway.
// Classification happens at the gateway boundary so the settlement
// gates never inspect provider error text themselves.
type GatewayError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewGatewayError builds a GatewayError with a formatted message.
func NewGatewayError(kind ErrorKind, format string, args ...any) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
