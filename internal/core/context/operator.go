package context

import (
	"context"
	"os"
)

// Operator identifies who submitted a movement (a user, a job, a CLI run).
type Operator struct {
	ID     string
	Source string // "api", "cli", "seed", ...
}

type operatorKey struct{}

// WithOperator adds Operator to context.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// GetOperator returns Operator from context or nil.
func GetOperator(ctx context.Context) *Operator {
	if v, ok := ctx.Value(operatorKey{}).(*Operator); ok {
		return v
	}
	return nil
}

// OperatorID returns the operator id or empty string.
func OperatorID(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil {
		return op.ID
	}
	return ""
}

// ProcessOperator names the OS user running a command-line process.
// Without $USER the source itself is used as the ID.
func ProcessOperator(source string) *Operator {
	id := os.Getenv("USER")
	if id == "" {
		id = source
	}
	return &Operator{ID: id, Source: source}
}

// ForProcess returns ctx with a fresh trace and the process operator.
func ForProcess(ctx context.Context, source string) context.Context {
	ctx = WithOperator(ctx, ProcessOperator(source))
	return WithTrace(ctx, NewTraceContext())
}
