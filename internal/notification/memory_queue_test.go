package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "one"))
	require.NoError(t, q.Send(ctx, "two"))
	assert.Equal(t, 2, q.Len())

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Body)
	assert.Equal(t, "two", messages[1].Body)
	assert.NotEmpty(t, messages[0].ID)
	assert.NotEmpty(t, messages[0].ReceiptHandle)
}

func TestMemoryQueueReceiveHonorsBatchSize(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, "msg"))
	}

	messages, err := q.Receive(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
	assert.Equal(t, 2, q.Len())
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	messages, err := q.Receive(ctx, 1, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, messages)
}

func TestMemoryQueueDeleteIsNoOp(t *testing.T) {
	q := NewMemoryQueue(1)
	assert.NoError(t, q.Delete(context.Background(), "anything"))
}
