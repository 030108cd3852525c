package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type normalizeStore interface {
	GetByID(ctx context.Context, id int) (*entities.Posting, error)
	UpdateFields(ctx context.Context, id int, fields map[string]any) error
}

const normalizeSystemPrompt = "You normalize messy job posting metadata. " +
	"Respond with a single JSON object with fields title, level, remote_mode, visa_sponsorship, location. " +
	"Set a field to null when you cannot improve on the provided value; never invent facts."

// Normalize cleans up a discovered posting's descriptive fields and always
// hands it on to evaluation.
type Normalize struct {
	postings normalizeStore
	reasoner Reasoner
	tasks    Enqueuer
}

func NewNormalize(postings normalizeStore, reasoner Reasoner, tasks Enqueuer) *Normalize {
	return &Normalize{postings: postings, reasoner: reasoner, tasks: tasks}
}

type normalizeResult struct {
	Title           *string `json:"title"`
	Level           *string `json:"level"`
	RemoteMode      *string `json:"remote_mode"`
	VisaSponsorship *string `json:"visa_sponsorship"`
	Location        *string `json:"location"`
}

func (n *Normalize) Handle(ctx context.Context, payload []byte) error {

	var task PostingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("invalid normalize payload: %w", err)
	}

	posting, err := n.postings.GetByID(ctx, task.PostingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// a missing row cannot be fixed by repetition, so no task failure
			log.Errorf("normalize: posting %v no longer exists, skipping", task.PostingID)
			return nil
		}
		return fmt.Errorf("failed to load posting %v: %w", task.PostingID, err)
	}

	result, err := n.normalize(ctx, posting)
	if err != nil {
		return err
	}

	// coalesce: only fields the model actually supplied may overwrite
	// stored values
	fields := map[string]any{}
	if result.Title != nil {
		fields["title"] = *result.Title
	}
	if result.Level != nil {
		fields["level"] = *result.Level
	}
	if result.RemoteMode != nil {
		fields["remote_mode"] = *result.RemoteMode
	}
	if result.VisaSponsorship != nil {
		fields["visa_sponsorship"] = *result.VisaSponsorship
	}
	if result.Location != nil {
		fields["location"] = *result.Location
	}

	if err := n.postings.UpdateFields(ctx, posting.ID, fields); err != nil {
		return fmt.Errorf("failed to update posting %v: %w", posting.ID, err)
	}

	next, _ := Next(StageNormalize, OutcomeNormalized)
	return n.tasks.Enqueue(ctx, next.Queue(), PostingTask{PostingID: posting.ID})
}

func (n *Normalize) normalize(ctx context.Context, posting *entities.Posting) (normalizeResult, error) {

	prompt := fmt.Sprintf("Company: %v\nTitle: %v\nLocation: %v\nRemote mode: %v\nVisa sponsorship: %v\nDescription excerpt:\n%v",
		posting.Company, posting.Title, posting.Location, posting.RemoteMode, posting.VisaSponsorship,
		truncate(posting.Description, 2000))

	start := time.Now()
	response, err := n.reasoner.GenerateJSON(ctx, TierFast, normalizeSystemPrompt, prompt)
	metrics.StageStepDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())

	if err != nil {
		return normalizeResult{}, fmt.Errorf("normalization call failed: %w", err)
	}

	var result normalizeResult
	if err := decodeModelJSON(response, &result); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Warnf("unparseable normalize response for posting %v, keeping stored values: %v", posting.ID, err)
		return normalizeResult{}, nil
	}
	return result, nil
}
