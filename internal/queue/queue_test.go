package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnqueueWithRetrySucceedsFirstTry(t *testing.T) {
	q := new(MockQueue)
	q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeSummarize}, 3, time.Millisecond)
	require.NoError(t, err)
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryRecovers(t *testing.T) {
	q := new(MockQueue)
	q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("nats down")).Twice()
	q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeSummarize}, 3, time.Millisecond)
	require.NoError(t, err)
	q.AssertNumberOfCalls(t, "Enqueue", 3)
}

func TestEnqueueWithRetryExhausts(t *testing.T) {
	q := new(MockQueue)
	failure := errors.New("nats down")
	q.On("Enqueue", mock.Anything, mock.Anything).Return(failure)

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeSummarize}, 2, time.Millisecond)
	assert.ErrorIs(t, err, failure)
	q.AssertNumberOfCalls(t, "Enqueue", 2)
}
