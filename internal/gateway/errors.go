package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind categorizes gateway failures.
type ErrorKind string

const (
	// KindTimeout indicates the acknowledgment did not arrive in time.
	KindTimeout ErrorKind = "timeout"

	// KindCanceled indicates the caller gave up before the acknowledgment.
	KindCanceled ErrorKind = "canceled"

	// KindDisconnected indicates the connection to the world was lost.
	KindDisconnected ErrorKind = "disconnected"

	// KindRejected indicates the world refused the request.
	KindRejected ErrorKind = "rejected"

	// KindProtocol indicates a malformed or unexpected message.
	KindProtocol ErrorKind = "protocol"

	// KindDesync indicates the world's tick does not match the schedule.
	KindDesync ErrorKind = "desync"
)

// GatewayError is a fatal failure talking to the world. It aborts the
// current test but not the suite.
type GatewayError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsKind reports whether err is a GatewayError of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// IsGatewayError reports whether err is any GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

func rejected(op string, format string, args ...any) *GatewayError {
	return &GatewayError{Op: op, Kind: KindRejected, Err: fmt.Errorf(format, args...)}
}

// fromContext maps a context error to a timeout or cancellation.
func fromContext(op string, err error) *GatewayError {
	kind := KindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &GatewayError{Op: op, Kind: kind, Err: err}
}
