package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanDisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(false))
	assert.False(t, Enabled())

	ctx := context.Background()
	got, span := StartSpan(ctx, "noop")
	assert.Equal(t, ctx, got)
	assert.False(t, span.SpanContext().IsValid())
	End(span, errors.New("ignored"))
}

func TestStartSpanEnabledRecords(t *testing.T) {
	require.NoError(t, Init(true))
	defer func() {
		_ = Shutdown(context.Background())
		enabled = false
	}()

	_, span := StartSpan(context.Background(), "sync")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
	End(span, nil)
}
