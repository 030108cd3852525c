package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/knowledge"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FitThreshold is the shortlist cut: score >= threshold continues the
// pipeline, anything below is archived.
const FitThreshold = 60

type evaluationStore interface {
	GetByID(ctx context.Context, id int) (*entities.Posting, error)
	UpdateEvaluation(ctx context.Context, id int, score int, reasons []string, risks []string,
		status entities.PostingStatus) error
}

type evaluationKnowledge interface {
	EvaluationContext() (*knowledge.EvaluationContext, error)
}

const fitScoreSystemPrompt = "You score how well a job posting fits a candidate profile. " +
	"Respond with a single JSON object: integer score (0-100), string-array reasoning, " +
	"string-array risk_flags, string recommendation, string-array keyword_matches. " +
	"Any dealbreaker match disqualifies regardless of other strengths."

// FitScore is the only branch point of the state machine: it decides whether
// a posting continues past evaluation or terminates.
type FitScore struct {
	postings  evaluationStore
	knowledge evaluationKnowledge
	reasoner  Reasoner
	tasks     Enqueuer
}

func NewFitScore(postings evaluationStore, provider evaluationKnowledge, reasoner Reasoner, tasks Enqueuer) *FitScore {
	return &FitScore{postings: postings, knowledge: provider, reasoner: reasoner, tasks: tasks}
}

type fitScoreResult struct {
	Score          *float64 `json:"score"`
	Reasoning      []string `json:"reasoning"`
	RiskFlags      []string `json:"risk_flags"`
	Recommendation *string  `json:"recommendation"`
	KeywordMatches []string `json:"keyword_matches"`
}

func (f *FitScore) Handle(ctx context.Context, payload []byte) error {

	var task PostingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("invalid fitscore payload: %w", err)
	}

	posting, err := f.postings.GetByID(ctx, task.PostingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("fitscore: posting %v no longer exists, skipping", task.PostingID)
			return nil
		}
		return fmt.Errorf("failed to load posting %v: %w", task.PostingID, err)
	}

	knowledgeContext, err := f.knowledge.EvaluationContext()
	if err != nil {
		return fmt.Errorf("failed to load evaluation knowledge: %w", err)
	}

	result, err := f.evaluate(ctx, posting, knowledgeContext)
	if err != nil {
		return err
	}

	score := clampScore(result.Score)

	status := entities.StatusArchived
	if score >= FitThreshold {
		status = entities.StatusShortlisted
	}

	if err := f.postings.UpdateEvaluation(ctx, posting.ID, score,
		result.Reasoning, result.RiskFlags, status); err != nil {
		return fmt.Errorf("failed to persist evaluation for posting %v: %w", posting.ID, err)
	}

	if status == entities.StatusArchived {
		metrics.PostingsArchived.Inc()
		log.Infof("posting %v archived with score %v", posting.ID, score)
		return nil
	}

	metrics.PostingsShortlisted.Inc()
	log.Infof("posting %v shortlisted with score %v", posting.ID, score)

	next, _ := Next(StageFitScore, OutcomeShortlisted)
	return f.tasks.Enqueue(ctx, next.Queue(), PostingTask{PostingID: posting.ID})
}

func (f *FitScore) evaluate(ctx context.Context, posting *entities.Posting,
	knowledgeContext *knowledge.EvaluationContext) (fitScoreResult, error) {

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Posting: %v at %v\nLevel: %v\nLocation: %v\nRemote mode: %v\nVisa sponsorship: %v\n",
		posting.Title, posting.Company, posting.Level, posting.Location, posting.RemoteMode, posting.VisaSponsorship)
	fmt.Fprintf(&prompt, "Requirements: %v\nTech stack: %v\n",
		strings.Join(posting.Extracted.Requirements, "; "), strings.Join(posting.Extracted.TechStack, "; "))
	fmt.Fprintf(&prompt, "\nCandidate dealbreakers: %v\n", strings.Join(knowledgeContext.Constraints.Dealbreakers, "; "))
	fmt.Fprintf(&prompt, "Target roles: %v\n", strings.Join(knowledgeContext.RoleTargets, "; "))
	fmt.Fprintf(&prompt, "Preferred locations: %v (remote only: %v, earliest start: %v)\n",
		strings.Join(knowledgeContext.Preferences.Locations, "; "),
		knowledgeContext.Preferences.RemoteOnly, knowledgeContext.Preferences.EarliestStart)
	fmt.Fprintf(&prompt, "Skills: %v\n", strings.Join(knowledgeContext.Skills, "; "))

	start := time.Now()
	response, err := f.reasoner.GenerateJSON(ctx, TierFast, fitScoreSystemPrompt, prompt.String())
	metrics.StageStepDuration.WithLabelValues("fitscore").Observe(time.Since(start).Seconds())

	if err != nil {
		return fitScoreResult{}, fmt.Errorf("evaluation call failed: %w", err)
	}

	var result fitScoreResult
	if err := decodeModelJSON(response, &result); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Warnf("unparseable evaluation response for posting %v, scoring zero: %v", posting.ID, err)
		return fitScoreResult{}, nil
	}
	return result, nil
}

// clampScore forces the externally produced score into [0, 100]; the raw
// model output is never trusted as-is.
func clampScore(raw *float64) int {
	if raw == nil {
		return 0
	}
	score := int(*raw)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
