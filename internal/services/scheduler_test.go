package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	mu     sync.Mutex
	queues []string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, queue string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, queue)
	return nil
}

func (f *fakeEnqueuer) enqueued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.queues...)
}

func Test_Scheduler_SeedsScoutTaskImmediately(t *testing.T) {

	enqueuer := &fakeEnqueuer{}
	scheduler, err := NewScheduler(enqueuer, time.Hour)
	require.NoError(t, err)
	defer scheduler.Stop()

	scheduler.Start()

	assert.Equal(t, []string{"scout"}, enqueuer.enqueued())
}

func Test_Scheduler_RejectsNonPositiveInterval(t *testing.T) {

	_, err := NewScheduler(&fakeEnqueuer{}, 0)
	assert.Error(t, err)
}
