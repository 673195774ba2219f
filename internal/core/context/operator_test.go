package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorID(t *testing.T) {
	assert.Empty(t, OperatorID(context.Background()))

	ctx := WithOperator(context.Background(), &Operator{ID: "storekeeper", Source: "cli"})
	assert.Equal(t, "storekeeper", OperatorID(ctx))
}

func TestForProcess(t *testing.T) {
	t.Setenv("USER", "alice")

	ctx := ForProcess(context.Background(), "ledgerctl")

	op := GetOperator(ctx)
	require.NotNil(t, op)
	assert.Equal(t, "alice", op.ID)
	assert.Equal(t, "ledgerctl", op.Source)

	tr := GetTrace(ctx)
	require.NotNil(t, tr)
	assert.NotEmpty(t, tr.TraceID)
	assert.NotEqual(t, tr.TraceID, tr.RequestID)
}

func TestProcessOperator_NoUser(t *testing.T) {
	t.Setenv("USER", "")
	assert.Equal(t, &Operator{ID: "worker", Source: "worker"}, ProcessOperator("worker"))
}

func TestTraceContext_Child(t *testing.T) {
	parent := NewTraceContext()
	child := parent.Child()

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.NotEqual(t, parent.RequestID, child.RequestID)
	assert.Nil(t, GetTrace(context.Background()))
}
