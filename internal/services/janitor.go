package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type stalePostingRepository interface {
	ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type taskCleanupRepository interface {
	PurgeDone(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor archives postings that sat in discovered state past their
// expiration and purges completed tasks, nightly.
type Janitor struct {
	postings              stalePostingRepository
	tasks                 taskCleanupRepository
	cron                  *cron.Cron
	postingExpirationDays int
	taskRetentionDays     int
}

func NewJanitor(postings stalePostingRepository, tasks taskCleanupRepository,
	postingExpirationDays int, taskRetentionDays int) (*Janitor, error) {

	if postingExpirationDays <= 0 || taskRetentionDays <= 0 {
		return nil, errors.New("expiration in days must be greater than zero")
	}

	j := &Janitor{
		postings:              postings,
		tasks:                 tasks,
		cron:                  cron.New(),
		postingExpirationDays: postingExpirationDays,
		taskRetentionDays:     taskRetentionDays,
	}

	_, err := j.cron.AddFunc("0 0 * * *", j.clean)
	if err != nil {
		return nil, err
	}

	j.cron.Start()
	log.Infof("janitor started, posting expiration: %d days, task retention: %d days",
		j.postingExpirationDays, j.taskRetentionDays)
	return j, nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}

func (j *Janitor) clean() {
	postingCutoff := time.Now().AddDate(0, 0, -j.postingExpirationDays)
	archived, err := j.postings.ArchiveStale(context.Background(), postingCutoff)
	if err != nil {
		log.Errorf("failed to archive stale postings: %v", err)
	} else if archived > 0 {
		log.Infof("archived %v stale postings", archived)
	}

	taskCutoff := time.Now().AddDate(0, 0, -j.taskRetentionDays)
	purged, err := j.tasks.PurgeDone(context.Background(), taskCutoff)
	if err != nil {
		log.Errorf("failed to purge completed tasks: %v", err)
	} else if purged > 0 {
		log.Infof("purged %v completed tasks", purged)
	}
}
