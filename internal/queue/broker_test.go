package queue

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/repositories"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTasks(t *testing.T) *repositories.Tasks {
	t.Helper()

	dbContext, err := repositories.NewDbContext(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, dbContext.Migrate())

	t.Cleanup(func() { _ = dbContext.Close() })
	return repositories.NewTasksRepository(dbContext.DB)
}

func runBroker(t *testing.T, broker *Broker) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = broker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func Test_Broker_DeliversEnqueuedPayload(t *testing.T) {

	tasks := newTestTasks(t)
	broker := NewBroker(tasks).WithPollInterval(10 * time.Millisecond)

	var delivered atomic.Value
	err := broker.Register("normalize", 1, func(ctx context.Context, payload []byte) error {
		delivered.Store(string(payload))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, broker.Enqueue(context.Background(), "normalize", map[string]int{"postingId": 7}))
	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		return delivered.Load() == `{"postingId":7}`
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		done, err := tasks.CountByStatus(context.Background(), "normalize", entities.TaskDone)
		return err == nil && done == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Broker_NilPayloadBecomesEmptyObject(t *testing.T) {

	tasks := newTestTasks(t)
	broker := NewBroker(tasks).WithPollInterval(10 * time.Millisecond)

	var delivered atomic.Value
	require.NoError(t, broker.Register("scout", 1, func(ctx context.Context, payload []byte) error {
		delivered.Store(string(payload))
		return nil
	}))

	require.NoError(t, broker.Enqueue(context.Background(), "scout", nil))
	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		return delivered.Load() == "{}"
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Broker_RetriesThenMarksDead(t *testing.T) {

	tasks := newTestTasks(t)
	broker := NewBroker(tasks).
		WithPollInterval(5 * time.Millisecond).
		WithBackoff(time.Millisecond, 5*time.Millisecond, 3)

	var calls atomic.Int32
	require.NoError(t, broker.Register("fitscore", 1, func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return errors.New("model unavailable")
	}))

	require.NoError(t, broker.Enqueue(context.Background(), "fitscore", nil))
	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		dead, err := tasks.CountByStatus(context.Background(), "fitscore", entities.TaskDead)
		return err == nil && dead == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 3, calls.Load())
}

func Test_Broker_SucceedsAfterRetry(t *testing.T) {

	tasks := newTestTasks(t)
	broker := NewBroker(tasks).
		WithPollInterval(5 * time.Millisecond).
		WithBackoff(time.Millisecond, 5*time.Millisecond, 10)

	var calls atomic.Int32
	require.NoError(t, broker.Register("materials", 1, func(ctx context.Context, payload []byte) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, broker.Enqueue(context.Background(), "materials", nil))
	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		done, err := tasks.CountByStatus(context.Background(), "materials", entities.TaskDone)
		return err == nil && done == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 3, calls.Load())
}

func Test_Broker_RespectsConcurrencyCap(t *testing.T) {

	tasks := newTestTasks(t)
	broker := NewBroker(tasks).WithPollInterval(5 * time.Millisecond)

	var mu sync.Mutex
	var inflight, peak int
	require.NoError(t, broker.Register("compliance", 2, func(ctx context.Context, payload []byte) error {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 6; i++ {
		require.NoError(t, broker.Enqueue(context.Background(), "compliance", nil))
	}
	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		done, err := tasks.CountByStatus(context.Background(), "compliance", entities.TaskDone)
		return err == nil && done == 6
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, 2, peak)
}

func Test_Broker_RedeliversTasksStrandedInRunning(t *testing.T) {

	tasks := newTestTasks(t)
	require.NoError(t, tasks.Add(context.Background(), "normalize", []byte(`{"postingId":1}`)))

	// simulate a crash mid-flight: the task was claimed but never finished
	task, err := tasks.ClaimNext(context.Background(), "normalize", time.Now())
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, entities.TaskRunning, task.Status)

	broker := NewBroker(tasks).WithPollInterval(10 * time.Millisecond)

	var calls atomic.Int32
	require.NoError(t, broker.Register("normalize", 1, func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return nil
	}))

	runBroker(t, broker)

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Broker_RejectsDuplicateQueueRegistration(t *testing.T) {

	broker := NewBroker(newTestTasks(t))

	handler := func(ctx context.Context, payload []byte) error { return nil }
	assert.NoError(t, broker.Register("scout", 1, handler))
	assert.Error(t, broker.Register("scout", 1, handler))
	assert.Error(t, broker.Register("other", 0, handler))
}

func Test_Backoff_DoublesAndCaps(t *testing.T) {

	broker := NewBroker(newTestTasks(t)).WithBackoff(30*time.Second, time.Hour, 10)

	assert.Equal(t, 30*time.Second, broker.backoff(1))
	assert.Equal(t, time.Minute, broker.backoff(2))
	assert.Equal(t, 8*time.Minute, broker.backoff(5))
	assert.Equal(t, time.Hour, broker.backoff(9))
}
