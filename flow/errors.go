package flow

import (
	"errors"
	"fmt"
)

// ParseError reports a syntax problem in the flow source. The flow is
// unusable but the host process carries on.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("flow parse error at line %d: %s", e.Line, e.Message)
	}
	return "flow parse error: " + e.Message
}

// ValidationError reports a structural problem in a parsed flow.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "flow validation error: " + e.Message
}

// ErrMaxMovesExceeded ends a run whose total node visits exceeded the move
// budget. It terminates the run, never the host process.
var ErrMaxMovesExceeded = errors.New("flow move budget exceeded")
