package entities

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskDead    TaskStatus = "dead"
)

// Task is one durable unit of queued work.
type Task struct {
	ID        int
	Queue     string
	Payload   []byte
	Status    TaskStatus
	Attempts  int
	NextRunAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
