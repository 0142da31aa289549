package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the generic verification failure. Every reason a token
// can be rejected wraps it, so callers that must not leak the root cause can
// collapse the whole family with a single errors.Is check.
var ErrInvalidToken = errors.New("invalid token")

var (
	// ErrNotFound covers both an unknown token id and a secret mismatch.
	// The two are deliberately indistinguishable.
	ErrNotFound = fmt.Errorf("%w: not found", ErrInvalidToken)

	// ErrExpired marks a token past its expiry date.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrAlreadyConsumed marks a token that has already authenticated once.
	ErrAlreadyConsumed = fmt.Errorf("%w: already consumed", ErrInvalidToken)

	// ErrAlreadyDisabled marks a token burned by an earlier failed check.
	ErrAlreadyDisabled = fmt.Errorf("%w: already disabled", ErrInvalidToken)

	// ErrContextMismatch marks a failed same-IP or same-browser check.
	ErrContextMismatch = fmt.Errorf("%w: request context mismatch", ErrInvalidToken)
)

var (
	// ErrInvalidAddress reports an unparseable IP address. It indicates
	// caller misuse and must propagate rather than be swallowed.
	ErrInvalidAddress = errors.New("invalid ip address")

	// ErrUserNotFound reports that no account matches a token's email.
	ErrUserNotFound = errors.New("user not found")

	// ErrStorage wraps persistence failures.
	ErrStorage = errors.New("storage error")
)
