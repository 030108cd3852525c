package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/events"
	"github.com/applyflow/applyflow/internal/knowledge"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Follow-up touchpoints created on a compliance pass, as day offsets from
// the pass time.
var followUpOffsets = []int{7, 14}

type verificationStore interface {
	GetByID(ctx context.Context, id int) (*entities.Posting, error)
	SetStatus(ctx context.Context, id int, status entities.PostingStatus) error
}

type followUpStore interface {
	Schedule(ctx context.Context, postingID int, number int, at time.Time) error
}

type complianceKnowledge interface {
	ComplianceContext() (*knowledge.ComplianceContext, error)
}

const complianceSystemPrompt = "You audit drafted job application materials. " +
	"Cross-check every numeric claim against the metrics allowlist and every stylistic choice " +
	"against the writing-style rules. Respond with a single JSON object: boolean pass and " +
	"array flags of objects with string fields excerpt and issue. Flag anything unverifiable."

// Compliance fact-checks the drafted materials. A pass schedules follow-ups
// and surfaces the posting for review; a failure sends it back to drafting
// for a human to resolve.
type Compliance struct {
	postings  verificationStore
	followUps followUpStore
	knowledge complianceKnowledge
	reasoner  Reasoner
	bus       EventBus.Bus
	now       func() time.Time
}

func NewCompliance(postings verificationStore, followUps followUpStore,
	provider complianceKnowledge, reasoner Reasoner, bus EventBus.Bus) *Compliance {

	return &Compliance{
		postings:  postings,
		followUps: followUps,
		knowledge: provider,
		reasoner:  reasoner,
		bus:       bus,
		now:       time.Now,
	}
}

type complianceFlag struct {
	Excerpt string `json:"excerpt"`
	Issue   string `json:"issue"`
}

type complianceResult struct {
	Pass  *bool            `json:"pass"`
	Flags []complianceFlag `json:"flags"`
}

func (c *Compliance) Handle(ctx context.Context, payload []byte) error {

	var task ComplianceTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("invalid compliance payload: %w", err)
	}

	posting, err := c.postings.GetByID(ctx, task.PostingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("compliance: posting %v no longer exists, skipping", task.PostingID)
			return nil
		}
		return fmt.Errorf("failed to load posting %v: %w", task.PostingID, err)
	}

	knowledgeContext, err := c.knowledge.ComplianceContext()
	if err != nil {
		return fmt.Errorf("failed to load compliance knowledge: %w", err)
	}

	result, err := c.verify(ctx, task, knowledgeContext)
	if err != nil {
		return err
	}

	// pass is decided here, not by the model's boolean alone: a claimed pass
	// with outstanding flags is a failure
	passed := result.Pass != nil && *result.Pass && len(result.Flags) == 0

	if !passed {
		return c.fail(ctx, posting, result.Flags)
	}
	return c.pass(ctx, posting)
}

func (c *Compliance) pass(ctx context.Context, posting *entities.Posting) error {

	if err := c.postings.SetStatus(ctx, posting.ID, entities.StatusReadyForReview); err != nil {
		return fmt.Errorf("failed to mark posting %v ready for review: %w", posting.ID, err)
	}

	passedAt := c.now()
	for i, offset := range followUpOffsets {
		if err := c.followUps.Schedule(ctx, posting.ID, i+1, passedAt.AddDate(0, 0, offset)); err != nil {
			return fmt.Errorf("failed to schedule follow-up %v for posting %v: %w", i+1, posting.ID, err)
		}
	}

	metrics.ComplianceOutcomes.WithLabelValues("pass").Inc()
	log.Infof("posting %v passed compliance and is ready for review", posting.ID)

	c.bus.Publish(events.PostingReadyForReviewTopic, events.PostingReadyForReview{
		PostingID: posting.ID,
		Company:   posting.Company,
		Title:     posting.Title,
		URL:       posting.ApplyURL,
	})
	return nil
}

// fail records the one terminal-but-recoverable state: back to drafting,
// flags logged, nothing further enqueued until a human acts.
func (c *Compliance) fail(ctx context.Context, posting *entities.Posting, flags []complianceFlag) error {

	if err := c.postings.SetStatus(ctx, posting.ID, entities.StatusDrafting); err != nil {
		return fmt.Errorf("failed to return posting %v to drafting: %w", posting.ID, err)
	}

	metrics.ComplianceOutcomes.WithLabelValues("fail").Inc()

	flagged := make([]string, 0, len(flags))
	for _, flag := range flags {
		flagged = append(flagged, fmt.Sprintf("%q: %v", flag.Excerpt, flag.Issue))
	}
	log.Warnf("posting %v failed compliance, human review required: %v",
		posting.ID, strings.Join(flagged, "; "))

	c.bus.Publish(events.ComplianceFailedTopic, events.ComplianceFailed{
		PostingID: posting.ID,
		Company:   posting.Company,
		Title:     posting.Title,
		Flags:     flagged,
	})
	return nil
}

func (c *Compliance) verify(ctx context.Context, task ComplianceTask,
	knowledgeContext *knowledge.ComplianceContext) (complianceResult, error) {

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Metrics allowlist: %v\n", strings.Join(knowledgeContext.MetricsAllowlist, "; "))
	fmt.Fprintf(&prompt, "Writing style rules: %v\n", strings.Join(knowledgeContext.StyleRules, "; "))
	fmt.Fprintf(&prompt, "\nCover letter:\n%v\n", task.CoverLetter)
	fmt.Fprintf(&prompt, "\nTailored bullets:\n%v\n", strings.Join(task.TailoredBullets, "\n"))
	fmt.Fprintf(&prompt, "\nWhy company:\n%v\n", task.WhyCompany)
	for question, answer := range task.Answers {
		fmt.Fprintf(&prompt, "\nQ: %v\nA: %v\n", question, answer)
	}

	start := time.Now()
	response, err := c.reasoner.GenerateJSON(ctx, TierDeep, complianceSystemPrompt, prompt.String())
	metrics.StageStepDuration.WithLabelValues("compliance").Observe(time.Since(start).Seconds())

	if err != nil {
		return complianceResult{}, fmt.Errorf("verification call failed: %w", err)
	}

	var result complianceResult
	if err := decodeModelJSON(response, &result); err != nil {
		// a verdict we cannot read is not a pass
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Warnf("unparseable compliance response for posting %v, treating as failure: %v", task.PostingID, err)
		return complianceResult{}, nil
	}
	return result, nil
}
