package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"gorm.io/gorm"
)

type Tasks struct {
	db *gorm.DB
}

func NewTasksRepository(db *gorm.DB) *Tasks {
	return &Tasks{db: db}
}

func (repo *Tasks) Add(ctx context.Context, queue string, payload []byte) error {
	return repo.db.WithContext(ctx).Create(&entities.Task{
		Queue:     queue,
		Payload:   payload,
		Status:    entities.TaskPending,
		NextRunAt: time.Now(),
	}).Error
}

// ClaimNext moves the oldest runnable task of the queue to running and
// returns it. The conditional update is the claim: whoever flips
// pending -> running owns the task. Returns nil when the queue is drained.
func (repo *Tasks) ClaimNext(ctx context.Context, queue string, now time.Time) (*entities.Task, error) {
	var task entities.Task

	err := repo.db.WithContext(ctx).
		Where("queue = ? AND status = ? AND next_run_at <= ?", queue, entities.TaskPending, now).
		Order("id").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	res := repo.db.WithContext(ctx).Model(&entities.Task{}).
		Where("id = ? AND status = ?", task.ID, entities.TaskPending).
		Update("status", entities.TaskRunning)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// lost the claim race, caller will retry
		return nil, nil
	}

	task.Status = entities.TaskRunning
	return &task, nil
}

func (repo *Tasks) MarkDone(ctx context.Context, id int) error {
	return repo.db.WithContext(ctx).Model(&entities.Task{}).Where("id = ?", id).
		Update("status", entities.TaskDone).Error
}

// Release returns a failed task to pending with its backoff deadline.
func (repo *Tasks) Release(ctx context.Context, id int, attempts int, nextRunAt time.Time) error {
	return repo.db.WithContext(ctx).Model(&entities.Task{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":      entities.TaskPending,
			"attempts":    attempts,
			"next_run_at": nextRunAt,
		}).Error
}

func (repo *Tasks) MarkDead(ctx context.Context, id int, attempts int) error {
	return repo.db.WithContext(ctx).Model(&entities.Task{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":   entities.TaskDead,
			"attempts": attempts,
		}).Error
}

// ResetRunning requeues tasks stranded in running by a crash. Re-running
// them is the at-least-once redelivery contract, not an anomaly.
func (repo *Tasks) ResetRunning(ctx context.Context) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&entities.Task{}).
		Where("status = ?", entities.TaskRunning).
		Update("status", entities.TaskPending)
	return res.RowsAffected, res.Error
}

func (repo *Tasks) PurgeDone(ctx context.Context, cutoff time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).
		Delete(&entities.Task{}, "status = ? AND updated_at < ?", entities.TaskDone, cutoff)
	return res.RowsAffected, res.Error
}

func (repo *Tasks) CountByStatus(ctx context.Context, queue string, status entities.TaskStatus) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&entities.Task{}).
		Where("queue = ? AND status = ?", queue, status).
		Count(&count).Error
	return count, err
}
