package dispatcher

import "fmt"

// InvalidArgumentError reports a missing or mistyped tool-call parameter.
type InvalidArgumentError struct {
	Parameter string
	Reason    string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Parameter, e.Reason)
}

// CancelledError reports that the caller's context was cancelled before a
// response could be produced. No ErpClient call in flight is forcibly
// aborted; this only stops the dispatcher from proceeding to its next stage.
type CancelledError struct {
	RequestID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("request %s cancelled", e.RequestID)
}

// UnknownOpError reports a descriptor bound to an OpKind this dispatcher does
// not know how to execute — a configuration bug, not a caller error.
type UnknownOpError struct {
	Op string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("unknown operation type %q", e.Op)
}
