package upstream

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload is wrapped by FetchError when a 2xx body is not valid JSON.
var ErrInvalidPayload = errors.New("invalid JSON payload")

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents non-2xx responses below 500.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents 2xx responses whose body is not JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError describes why a single account could not be fetched.
type FetchError struct {
	AccountID  string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch account %s: %s error (status %d): %s: %v",
			e.AccountID, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch account %s: %s error (status %d): %s",
		e.AccountID, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
