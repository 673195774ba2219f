// Package context carries request-scoped values (trace and operator) through
// the ledger so that logs and ledger entries can be attributed.
package context

import (
	"context"

	"storeledger/internal/core/id"
)

// TraceContext correlates the log lines of one command run or worker sweep.
// RequestID names the unit of work; TraceID may be shared by several of them.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// GetTrace returns the trace in ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	t, _ := ctx.Value(traceKey{}).(*TraceContext)
	return t
}

// NewTraceContext starts a trace. The IDs are time-ordered, so sorting logs
// by request_id follows start order.
func NewTraceContext() *TraceContext {
	return &TraceContext{TraceID: newID(), RequestID: newID()}
}

// Child keeps the trace ID and starts a new request within it.
func (t *TraceContext) Child() *TraceContext {
	return &TraceContext{TraceID: t.TraceID, RequestID: newID()}
}

func newID() string { return id.New().String() }
