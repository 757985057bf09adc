package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"reelshare/pkg/apperr"
)

// Outcome tells callers whether a failed write may still land on chain.
type Outcome string

const (
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// TxError reports a state-changing call that did not confirm successfully.
// With OutcomeUnknown the transaction may still be mined; callers must not
// assume success or failure.
type TxError struct {
	Op      string
	Network string
	Hash    common.Hash
	Outcome Outcome
	Reason  string
	Err     error
}

func (e *TxError) Error() string {
	switch e.Outcome {
	case OutcomeUnknown:
		return fmt.Sprintf("%s on %s: outcome unknown, do not assume success (tx %s): %v", e.Op, e.Network, e.Hash.Hex(), e.Err)
	default:
		if e.Reason != "" {
			return fmt.Sprintf("%s on %s failed: %s", e.Op, e.Network, e.Reason)
		}
		return fmt.Sprintf("%s on %s failed: %v", e.Op, e.Network, e.Err)
	}
}

func (e *TxError) Unwrap() error { return e.Err }

func (e *TxError) ErrorKind() apperr.Kind {
	if e.Outcome == OutcomeUnknown {
		return apperr.KindUnknownOutcome
	}
	return apperr.KindBlockchain
}

// HasHash reports whether the transaction was broadcast.
func (e *TxError) HasHash() bool { return e.Hash != (common.Hash{}) }

// EventNotFoundError is returned when a confirmed receipt lacks the event that
// carries the identifier assigned by the contract.
type EventNotFoundError struct {
	Event string
	Hash  common.Hash
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("event %s not found in receipt of %s", e.Event, e.Hash.Hex())
}

func (e *EventNotFoundError) ErrorKind() apperr.Kind { return apperr.KindEventNotFound }

// ReadError wraps a view call that failed after retries.
type ReadError struct {
	Network string
	Method  string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s on %s: %v", e.Method, e.Network, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) ErrorKind() apperr.Kind { return apperr.KindBlockchain }
