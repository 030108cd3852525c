package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

type draftingStore interface {
	GetByID(ctx context.Context, id int) (*entities.Posting, error)
	SetStatus(ctx context.Context, id int, status entities.PostingStatus) error
	UpdateFields(ctx context.Context, id int, fields map[string]any) error
}

type resumeStore interface {
	Add(ctx context.Context, version *entities.ResumeVersion) error
}

type applicationStore interface {
	Create(ctx context.Context, application *entities.Application) (bool, error)
}

type draftingKnowledge interface {
	DraftingContext() (*knowledge.DraftingContext, error)
}

const materialsSystemPrompt = "You draft job application materials grounded strictly in provided sources. " +
	"Respond with a single JSON object: string cover_letter, string-array tailored_bullets (exactly five), " +
	"string why_company, object answers mapping common application prompts to answers. " +
	"Use only the pre-approved bullets, metrics and employers you were given; never invent numbers or experience."

// Materials drafts a cover letter, tailored resume bullets and Q&A answers
// for a shortlisted posting, persisting an immutable resume snapshot and the
// application row that links everything together.
type Materials struct {
	postings     draftingStore
	resumes      resumeStore
	applications applicationStore
	knowledge    draftingKnowledge
	reasoner     Reasoner
	tasks        Enqueuer
}

func NewMaterials(postings draftingStore, resumes resumeStore, applications applicationStore,
	provider draftingKnowledge, reasoner Reasoner, tasks Enqueuer) *Materials {

	return &Materials{
		postings:     postings,
		resumes:      resumes,
		applications: applications,
		knowledge:    provider,
		reasoner:     reasoner,
		tasks:        tasks,
	}
}

type materialsResult struct {
	CoverLetter     *string           `json:"cover_letter"`
	TailoredBullets []string          `json:"tailored_bullets"`
	WhyCompany      *string           `json:"why_company"`
	Answers         map[string]string `json:"answers"`
}

func (m *Materials) Handle(ctx context.Context, payload []byte) error {

	var task PostingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("invalid materials payload: %w", err)
	}

	posting, err := m.postings.GetByID(ctx, task.PostingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("materials: posting %v no longer exists, skipping", task.PostingID)
			return nil
		}
		return fmt.Errorf("failed to load posting %v: %w", task.PostingID, err)
	}

	// the drafting marker goes down first, regardless of what happens next
	if err := m.postings.SetStatus(ctx, posting.ID, entities.StatusDrafting); err != nil {
		return fmt.Errorf("failed to mark posting %v as drafting: %w", posting.ID, err)
	}

	knowledgeContext, err := m.knowledge.DraftingContext()
	if err != nil {
		return fmt.Errorf("failed to load drafting knowledge: %w", err)
	}

	result, err := m.draft(ctx, posting, knowledgeContext)
	if err != nil {
		return err
	}

	resumeHash := sha256.Sum256([]byte(knowledgeContext.Resume.Text))
	version := &entities.ResumeVersion{
		BaseResumeHash: hex.EncodeToString(resumeHash[:]),
		TargetRole:     posting.Title,
		Bullets:        result.TailoredBullets,
	}
	if err := m.resumes.Add(ctx, version); err != nil {
		return fmt.Errorf("failed to persist resume version for posting %v: %w", posting.ID, err)
	}

	application := &entities.Application{
		PostingID:       posting.ID,
		ResumeVersionID: version.ID,
		CoverLetterRef:  fmt.Sprintf("posting:%v:cover_letter", posting.ID),
		QARef:           fmt.Sprintf("posting:%v:qa", posting.ID),
	}
	if _, err := m.applications.Create(ctx, application); err != nil {
		return fmt.Errorf("failed to persist application for posting %v: %w", posting.ID, err)
	}

	notes, err := json.Marshal(map[string]any{
		"cover_letter": orUnknown(result.CoverLetter),
		"why_company":  orUnknown(result.WhyCompany),
		"answers":      result.Answers,
	})
	if err != nil {
		return fmt.Errorf("failed to encode materials for posting %v: %w", posting.ID, err)
	}
	if err := m.postings.UpdateFields(ctx, posting.ID, map[string]any{"notes": string(notes)}); err != nil {
		return fmt.Errorf("failed to store materials on posting %v: %w", posting.ID, err)
	}

	// verification receives the drafts via payload so it never has to
	// re-derive what was just produced
	next, _ := Next(StageMaterials, OutcomeDrafted)
	return m.tasks.Enqueue(ctx, next.Queue(), ComplianceTask{
		PostingID:       posting.ID,
		ResumeVersionID: version.ID,
		CoverLetter:     orUnknown(result.CoverLetter),
		TailoredBullets: result.TailoredBullets,
		WhyCompany:      orUnknown(result.WhyCompany),
		Answers:         result.Answers,
	})
}

func (m *Materials) draft(ctx context.Context, posting *entities.Posting,
	knowledgeContext *knowledge.DraftingContext) (materialsResult, error) {

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Posting: %v at %v\nLocation: %v\nDescription excerpt:\n%v\n",
		posting.Title, posting.Company, posting.Location, truncate(posting.Description, 4000))
	fmt.Fprintf(&prompt, "\nBase resume:\n%v\n", knowledgeContext.Resume.Text)

	prompt.WriteString("\nPre-approved bullet library:\n")
	for _, bullet := range knowledgeContext.Bullets {
		fmt.Fprintf(&prompt, "[%v] %v\n", bullet.ID, bullet.Text)
	}

	fmt.Fprintf(&prompt, "\nMetrics allowlist: %v\n", strings.Join(knowledgeContext.MetricsAllowlist, "; "))

	prompt.WriteString("\nStory bank:\n")
	for _, story := range knowledgeContext.Stories {
		fmt.Fprintf(&prompt, "%v: %v\n", story.Name, story.Text)
	}

	fmt.Fprintf(&prompt, "\nWhy-company templates: %v\n", strings.Join(knowledgeContext.WhyCompany, " | "))
	fmt.Fprintf(&prompt, "Writing style rules: %v\n", strings.Join(knowledgeContext.StyleRules, "; "))
	fmt.Fprintf(&prompt, "Skills: %v\n", strings.Join(knowledgeContext.Skills, "; "))

	start := time.Now()
	response, err := m.reasoner.GenerateJSON(ctx, TierDeep, materialsSystemPrompt, prompt.String())
	metrics.StageStepDuration.WithLabelValues("materials").Observe(time.Since(start).Seconds())

	if err != nil {
		return materialsResult{}, fmt.Errorf("drafting call failed: %w", err)
	}

	var result materialsResult
	if err := decodeModelJSON(response, &result); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Warnf("unparseable drafting response for posting %v, storing placeholders: %v", posting.ID, err)
		return materialsResult{}, nil
	}
	return result, nil
}
