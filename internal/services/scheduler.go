package services

import (
	"context"
	"time"

	"github.com/applyflow/applyflow/internal/stages"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type taskEnqueuer interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}

// Scheduler seeds the pipeline by enqueuing one scout task on a fixed
// interval. Firing twice in close succession is safe: discovery dedup makes
// the second pass redundant work, nothing more.
type Scheduler struct {
	tasks    taskEnqueuer
	cron     *cron.Cron
	interval time.Duration
}

func NewScheduler(tasks taskEnqueuer, interval time.Duration) (*Scheduler, error) {

	if interval <= 0 {
		return nil, errors.New("scout interval must be greater than zero")
	}

	s := &Scheduler{
		tasks:    tasks,
		cron:     cron.New(),
		interval: interval,
	}

	_, err := s.cron.AddFunc("@every "+interval.String(), s.enqueueScout)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins the interval and seeds one scout task immediately so a fresh
// deployment does not idle until the first tick.
func (s *Scheduler) Start() {
	s.enqueueScout()
	s.cron.Start()
	log.Infof("scheduler started, scouting every %v", s.interval)
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) enqueueScout() {
	if err := s.tasks.Enqueue(context.Background(), stages.StageScout.Queue(), nil); err != nil {
		log.Errorf("failed to enqueue scout task: %v", err)
	}
}
