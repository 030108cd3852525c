package tests

import (
	"context"
	"testing"
	"time"

	"github.com/applyflow/applyflow/internal/clients/greenhouse"
	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/events"
	"github.com/applyflow/applyflow/internal/knowledge"
	"github.com/applyflow/applyflow/internal/queue"
	"github.com/applyflow/applyflow/internal/repositories"
	"github.com/applyflow/applyflow/internal/stages"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearDb() {
	dbCtx.DB.Exec("DELETE from tasks WHERE TRUE")
	dbCtx.DB.Exec("DELETE from follow_ups WHERE TRUE")
	dbCtx.DB.Exec("DELETE from applications WHERE TRUE")
	dbCtx.DB.Exec("DELETE from resume_versions WHERE TRUE")
	dbCtx.DB.Exec("DELETE from postings WHERE TRUE")
}

func internJob(id int64) greenhouse.Job {
	return greenhouse.Job{
		ID:          id,
		Title:       "Software Engineering Intern",
		Location:    greenhouse.Location{Name: "Berlin"},
		Content:     "&lt;p&gt;Write Go services with us.&lt;/p&gt;",
		AbsoluteURL: "https://boards.greenhouse.io/acmesoft/jobs/1",
		UpdatedAt:   greenhouse.CustomTime{Time: time.Now()},
	}
}

// startPipeline wires all five stages onto a fast-polling broker and runs
// it until the test finishes.
func startPipeline(t *testing.T, reasoner *mockReasoner, board mockBoard, bus EventBus.Bus) *queue.Broker {
	t.Helper()

	postings := repositories.NewPostingsRepository(dbCtx.DB)
	followUps := repositories.NewFollowUpsRepository(dbCtx.DB)
	resumes := repositories.NewResumesRepository(dbCtx.DB)
	applications := repositories.NewApplicationsRepository(dbCtx.DB)
	tasks := repositories.NewTasksRepository(dbCtx.DB)
	provider := knowledge.NewProvider(cfg.Knowledge.Dir)

	broker := queue.NewBroker(tasks).
		WithPollInterval(10 * time.Millisecond).
		WithBackoff(time.Millisecond, 10*time.Millisecond, 3)

	scout := stages.NewScout([]stages.PostingSource{board}, reasoner, postings, broker)
	normalize := stages.NewNormalize(postings, reasoner, broker)
	fitScore := stages.NewFitScore(postings, provider, reasoner, broker)
	materials := stages.NewMaterials(postings, resumes, applications, provider, reasoner, broker)
	compliance := stages.NewCompliance(postings, followUps, provider, reasoner, bus)

	require.NoError(t, broker.Register(stages.StageScout.Queue(), 1, scout.Handle))
	require.NoError(t, broker.Register(stages.StageNormalize.Queue(), 2, normalize.Handle))
	require.NoError(t, broker.Register(stages.StageFitScore.Queue(), 2, fitScore.Handle))
	require.NoError(t, broker.Register(stages.StageMaterials.Queue(), 1, materials.Handle))
	require.NoError(t, broker.Register(stages.StageCompliance.Queue(), 1, compliance.Handle))

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
	return broker
}

func postingBySourceID(t *testing.T, sourceID string) *entities.Posting {
	t.Helper()

	var posting entities.Posting
	require.NoError(t, dbCtx.DB.First(&posting, "source_id = ?", sourceID).Error)
	return &posting
}

func Test_Pipeline_PostingReachesReadyForReview(t *testing.T) {

	defer clearDb()

	reasoner := newMockReasoner()
	board := mockBoard{name: "acmesoft", jobs: []greenhouse.Job{
		internJob(100),
		{ID: 101, Title: "Staff Platform Engineer", UpdatedAt: greenhouse.CustomTime{Time: time.Now()}},
	}}

	notifications := 0
	bus := EventBus.New()
	require.NoError(t, bus.Subscribe(events.PostingReadyForReviewTopic, func(ready events.PostingReadyForReview) {
		notifications++
	}))

	broker := startPipeline(t, reasoner, board, bus)
	require.NoError(t, broker.Enqueue(context.Background(), stages.StageScout.Queue(), nil))

	assert.Eventually(t, func() bool {
		var count int64
		dbCtx.DB.Model(&entities.Posting{}).
			Where("status = ?", entities.StatusReadyForReview).Count(&count)
		return count == 1
	}, 10*time.Second, 20*time.Millisecond)

	posting := postingBySourceID(t, "100")
	assert.Equal(t, "acmesoft", posting.Company)
	assert.Equal(t, "intern", posting.Level)
	assert.Equal(t, "Berlin", posting.Location)
	assert.Equal(t, 85, posting.FitScore)
	assert.Contains(t, posting.Notes, "Dear team")

	followUps, err := repositories.NewFollowUpsRepository(dbCtx.DB).GetByPosting(context.Background(), posting.ID)
	assert.NoError(t, err)
	require.Len(t, followUps, 2)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), followUps[0].ScheduledAt, time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), followUps[1].ScheduledAt, time.Minute)

	application, err := repositories.NewApplicationsRepository(dbCtx.DB).GetByPosting(context.Background(), posting.ID)
	assert.NoError(t, err)
	require.NotNil(t, application)

	version, err := repositories.NewResumesRepository(dbCtx.DB).GetByID(context.Background(), application.ResumeVersionID)
	assert.NoError(t, err)
	assert.Len(t, version.Bullets, 5)

	// the senior listing was filtered before any model call
	assert.Equal(t, 1, reasoner.callCount("extract"))
	assert.Equal(t, 1, notifications)
}

func Test_Pipeline_LowScoreArchivesWithoutDrafting(t *testing.T) {

	defer clearDb()

	reasoner := newMockReasoner()
	reasoner.evaluation = `{"score": 30, "reasoning": ["wrong stack"], "risk_flags": ["dealbreaker: relocation"],
		"recommendation": "skip", "keyword_matches": []}`
	board := mockBoard{name: "acmesoft", jobs: []greenhouse.Job{internJob(200)}}

	broker := startPipeline(t, reasoner, board, EventBus.New())
	require.NoError(t, broker.Enqueue(context.Background(), stages.StageScout.Queue(), nil))

	assert.Eventually(t, func() bool {
		var count int64
		dbCtx.DB.Model(&entities.Posting{}).
			Where("status = ?", entities.StatusArchived).Count(&count)
		return count == 1
	}, 10*time.Second, 20*time.Millisecond)

	posting := postingBySourceID(t, "200")
	assert.Equal(t, 30, posting.FitScore)
	assert.Equal(t, []string{"dealbreaker: relocation"}, posting.RiskFlags)
	assert.Equal(t, 0, reasoner.callCount("draft"))

	application, err := repositories.NewApplicationsRepository(dbCtx.DB).GetByPosting(context.Background(), posting.ID)
	assert.NoError(t, err)
	assert.Nil(t, application)
}

func Test_Pipeline_ComplianceFailureReturnsToDrafting(t *testing.T) {

	defer clearDb()

	reasoner := newMockReasoner()
	reasoner.verdict = `{"pass": false, "flags": [{"excerpt": "cut latency by 90%", "issue": "not on allowlist"}]}`
	board := mockBoard{name: "acmesoft", jobs: []greenhouse.Job{internJob(300)}}

	failures := make(chan events.ComplianceFailed, 1)
	bus := EventBus.New()
	require.NoError(t, bus.Subscribe(events.ComplianceFailedTopic, func(failed events.ComplianceFailed) {
		failures <- failed
	}))

	broker := startPipeline(t, reasoner, board, bus)
	require.NoError(t, broker.Enqueue(context.Background(), stages.StageScout.Queue(), nil))

	var failure events.ComplianceFailed
	select {
	case failure = <-failures:
	case <-time.After(10 * time.Second):
		require.Fail(t, "timed out waiting for compliance failure")
	}

	posting := postingBySourceID(t, "300")
	assert.Equal(t, entities.StatusDrafting, posting.Status)
	assert.Equal(t, posting.ID, failure.PostingID)
	require.Len(t, failure.Flags, 1)
	assert.Contains(t, failure.Flags[0], "not on allowlist")

	// no follow-ups until the materials pass verification
	followUps, err := repositories.NewFollowUpsRepository(dbCtx.DB).GetByPosting(context.Background(), posting.ID)
	assert.NoError(t, err)
	assert.Empty(t, followUps)

	// materials were still drafted and persisted before the failure
	application, err := repositories.NewApplicationsRepository(dbCtx.DB).GetByPosting(context.Background(), posting.ID)
	assert.NoError(t, err)
	assert.NotNil(t, application)
}
