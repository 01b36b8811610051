package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Parameter declares one named argument of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "number", "integer", "boolean"
	Description string `json:"description"`
}

// Tool is the interface for agent tools. Parameters are declared statically and in order.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Execute(ctx context.Context, args Args) (string, error)
}

// Args are the keyword arguments a model supplied for one call.
type Args map[string]any

// ArgumentError reports a missing or mistyped argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Name, e.Reason)
}

// String returns a required string argument. Numbers are formatted, since models
// occasionally send "100" as 100.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", &ArgumentError{Name: name, Reason: "missing"}
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", &ArgumentError{Name: name, Reason: fmt.Sprintf("want string, got %T", v)}
	}
}

// Float returns a required numeric argument. Numeric strings are accepted.
func (a Args) Float(name string) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, &ArgumentError{Name: name, Reason: "missing"}
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, &ArgumentError{Name: name, Reason: "not a number: " + t}
		}
		return f, nil
	default:
		return 0, &ArgumentError{Name: name, Reason: fmt.Sprintf("want number, got %T", v)}
	}
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	params      []Parameter
	fn          func(ctx context.Context, args Args) (string, error)
}

// New builds a Tool from an explicit declaration.
func New(name, description string, params []Parameter, fn func(ctx context.Context, args Args) (string, error)) *Func {
	return &Func{name: name, description: description, params: params, fn: fn}
}

func (f *Func) Name() string            { return f.name }
func (f *Func) Description() string     { return f.description }
func (f *Func) Parameters() []Parameter { return f.params }

func (f *Func) Execute(ctx context.Context, args Args) (string, error) {
	return f.fn(ctx, args)
}
