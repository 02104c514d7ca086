package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorMonthOutOfSync blocks finalization of a month whose ledger still
// disagrees with the payment processor.
var ErrorMonthOutOfSync = errors.New("month is out of sync with processor")

// ErrorMonthAlreadyProcessed marks a finalization call on an immutable month.
var ErrorMonthAlreadyProcessed = errors.New("month is already processed")

var ErrorSyncInProgress = errors.New("a sync is already running for this month")

// RetryableError wraps upstream unavailability (processor or ledger
// unreachable). The core never retries by itself; the caller owns the
// retry/backoff policy.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v (retryable)", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func Retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Op: op, Err: err}
}

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
