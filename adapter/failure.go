// Package adapter defines the contracts between pipeline steps and the
// external collaborators they depend on, the typed failure every adapter
// returns, and cache-backed decorators for each contract.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Reason is the typed cause of an adapter failure.
type Reason string

// Adapter failure reasons.
const (
	ReasonTimeout           Reason = "timeout"
	ReasonNotFound          Reason = "not_found"
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonCorrupt           Reason = "corrupt"
	ReasonUpstream          Reason = "upstream_error"
	ReasonTransport         Reason = "transport"
)

// Class groups reasons into the error taxonomy steps route on.
type Class string

// Error classes.
const (
	ClassTransport   Class = "TransportFailure"
	ClassUpstream    Class = "UpstreamFailure"
	ClassUnsupported Class = "UnsupportedContent"
	ClassTimeout     Class = "Timeout"
	ClassStepFault   Class = "StepFault"
)

// Class returns the taxonomy class of r.
func (r Reason) Class() Class {
	switch r {
	case ReasonTransport:
		return ClassTransport
	case ReasonUpstream:
		return ClassUpstream
	case ReasonUnsupportedFormat, ReasonCorrupt, ReasonNotFound:
		return ClassUnsupported
	case ReasonTimeout:
		return ClassTimeout
	default:
		return ClassStepFault
	}
}

// Retryable reports whether a later attempt may succeed.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonTransport, ReasonUpstream, ReasonTimeout:
		return true
	default:
		return false
	}
}

// Failure is the error every adapter returns.
type Failure struct {
	Op     string `json:"op"`
	Reason Reason `json:"reason"`
	Status int    `json:"status,omitempty"`
	Err    error  `json:"-"`
}

// Fail creates a Failure for op.
func Fail(op string, reason Reason, err error) *Failure {
	return &Failure{Op: op, Reason: reason, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ReasonOf returns the Reason carried by err. Errors that are not adapter
// failures report an empty Reason.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

// Classify converts an arbitrary error raised at an adapter boundary into a
// Failure. Existing failures pass through unchanged.
func Classify(op string, err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(op, ReasonTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Fail(op, ReasonTimeout, err)
		}
		return Fail(op, ReasonTransport, err)
	}

	return Fail(op, ReasonUpstream, err)
}

// Bound applies an adapter's internal timeout to ctx. A zero timeout leaves
// ctx unchanged.
func Bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
