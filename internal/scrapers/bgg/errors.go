package bgg

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrRateLimited is returned when the service answers 429 Too Many Requests.
	ErrRateLimited = errors.New("bgg: rate limited")
	// ErrTransient covers timeouts, connection resets, 5xx and any other non-200 answer.
	ErrTransient = errors.New("bgg: transient failure")
	// ErrParse is returned when an expected element is missing from a response.
	ErrParse = errors.New("bgg: unexpected response")
	// ErrRetryBudgetExhausted is returned once a retry policy runs out of attempts.
	ErrRetryBudgetExhausted = errors.New("bgg: retry budget exhausted")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // "fetch-page", "fetch-owned", "fetch-stats"
	Target string // page number, username or batch range
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bgg %s [%s]: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, target string, err error) error {
	return &Error{Op: op, Target: target, Err: err}
}

// classifyResponse turns the outcome of a request into nil or one of the sentinel
// errors. Failures caused by `ctx` ending are returned as is so they are never retried.
func classifyResponse(ctx context.Context, res *resty.Response, err error) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	switch res.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, res.Status())
	}
	return fmt.Errorf("%w: %s", ErrTransient, res.Status())
}
