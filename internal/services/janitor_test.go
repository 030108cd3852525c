package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStalePostings struct {
	cutoff   time.Time
	archived int64
}

func (f *fakeStalePostings) ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.archived, nil
}

type fakeTaskCleanup struct {
	cutoff time.Time
	purged int64
}

func (f *fakeTaskCleanup) PurgeDone(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.purged, nil
}

func Test_Janitor_CleanUsesConfiguredRetention(t *testing.T) {

	postings := &fakeStalePostings{archived: 3}
	tasks := &fakeTaskCleanup{purged: 5}

	janitor, err := NewJanitor(postings, tasks, 30, 7)
	require.NoError(t, err)
	defer janitor.Stop()

	janitor.clean()

	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), postings.cutoff, time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), tasks.cutoff, time.Minute)
}

func Test_Janitor_RejectsNonPositiveRetention(t *testing.T) {

	_, err := NewJanitor(&fakeStalePostings{}, &fakeTaskCleanup{}, 0, 7)
	assert.Error(t, err)

	_, err = NewJanitor(&fakeStalePostings{}, &fakeTaskCleanup{}, 30, 0)
	assert.Error(t, err)
}
