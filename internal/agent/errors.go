package agent

import (
	"errors"
	"fmt"
	"strings"
)

// errorPrefix marks every failure answer returned by Execute.
const errorPrefix = "Error executing plan: "

var (
	// ErrMissingAnswer is returned when a terminal decision carries no direct_response.
	ErrMissingAnswer = errors.New("terminal decision has no direct_response")
	// ErrIllFormedDecision is returned for a decision that neither answers nor calls a tool.
	ErrIllFormedDecision = errors.New("decision has neither a direct_response nor tool_calls")
	// ErrNoClarifier is returned when a clarification is needed but nobody can be asked.
	ErrNoClarifier = errors.New("clarification needed but no clarifier is available")
	// ErrSelfDispatch is returned when the planner selects itself.
	ErrSelfDispatch = errors.New("planner cannot dispatch to itself")
)

// RoundLimitError is returned when the loop runs out of planning rounds.
type RoundLimitError struct {
	Max int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("round limit of %d exceeded without a final answer", e.Max)
}

// ClarificationLimitError is returned when the model keeps asking after the configured
// number of clarifications.
type ClarificationLimitError struct {
	Max int
}

func (e *ClarificationLimitError) Error() string {
	return fmt.Sprintf("still unclear after %d clarifications", e.Max)
}

// UnknownAgentError is returned by the Factory for unregistered identifiers.
type UnknownAgentError struct {
	Name  string
	Known []string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// ErrorAnswer renders err the way every agent reports failures to its caller.
func ErrorAnswer(err error) string {
	return errorPrefix + err.Error()
}

// IsErrorAnswer reports whether answer is a rendered failure.
func IsErrorAnswer(answer string) bool {
	return strings.HasPrefix(answer, errorPrefix)
}
