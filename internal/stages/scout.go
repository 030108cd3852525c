package stages

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/applyflow/applyflow/internal/clients/greenhouse"
	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	"github.com/applyflow/applyflow/pkg/htmltext"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// PostingSource enumerates one organization's current postings.
type PostingSource interface {
	Name() string
	Jobs(ctx context.Context) ([]greenhouse.Job, error)
}

type discoveryStore interface {
	Create(ctx context.Context, posting *entities.Posting) (bool, error)
}

// The cheap textual pre-filter runs before any reasoning call is spent on a
// posting. Cost control, not correctness: a miss only costs a model call.
var earlyCareerPattern = regexp.MustCompile(
	`(?i)\b(intern(ship)?|new ?grad(uate)?|entry[ -]level|junior|early[ -]career|graduate|university)\b`)

const scoutSystemPrompt = "You extract structured facts from job postings. " +
	"Respond with a single JSON object with string fields career_level, remote_mode, visa_sponsorship " +
	"and string-array fields requirements, responsibilities, tech_stack. " +
	"Use \"unknown\" for anything the posting does not state."

// Scout discovers postings from every configured source and seeds the
// pipeline with normalize tasks for the ones it has not seen before.
type Scout struct {
	sources  []PostingSource
	reasoner Reasoner
	postings discoveryStore
	tasks    Enqueuer
	cache    *gocache.Cache
}

func NewScout(sources []PostingSource, reasoner Reasoner, postings discoveryStore, tasks Enqueuer) *Scout {
	return &Scout{
		sources:  sources,
		reasoner: reasoner,
		postings: postings,
		tasks:    tasks,
		cache:    gocache.New(6*time.Hour, time.Hour),
	}
}

func (s *Scout) Handle(ctx context.Context, _ []byte) error {
	for _, source := range s.sources {
		s.scoutSource(ctx, source)
	}
	return nil
}

// scoutSource contains all failures to the one source: an outage there must
// never block discovery from the others.
func (s *Scout) scoutSource(ctx context.Context, source PostingSource) {

	start := time.Now()
	jobs, err := source.Jobs(ctx)
	metrics.StageStepDuration.WithLabelValues("source_fetch").Observe(time.Since(start).Seconds())

	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeSourceApi).
			Errorf("failed to fetch postings from %v: %v", source.Name(), err)
		return
	}

	discovered := 0
	for _, job := range jobs {

		if !earlyCareerPattern.MatchString(job.Title) {
			continue
		}

		cacheID := source.Name() + "/" + strconv.FormatInt(job.ID, 10)
		if _, seen := s.cache.Get(cacheID); seen {
			continue
		}

		inserted, err := s.discover(ctx, source.Name(), job)
		if err != nil {
			// per-posting containment: siblings from the same source continue
			log.Errorf("failed to process posting %v from %v: %v", job.ID, source.Name(), err)
			continue
		}
		if inserted {
			discovered++
		}

		if cacheErr := s.cache.Add(cacheID, "", gocache.DefaultExpiration); cacheErr != nil {
			log.Errorf("failed to cache posting id: %v", cacheErr)
		}
	}

	log.Infof("scouted %v: %v postings listed, %v newly discovered", source.Name(), len(jobs), discovered)
}

type scoutExtraction struct {
	CareerLevel      *string  `json:"career_level"`
	RemoteMode       *string  `json:"remote_mode"`
	VisaSponsorship  *string  `json:"visa_sponsorship"`
	Requirements     []string `json:"requirements"`
	Responsibilities []string `json:"responsibilities"`
	TechStack        []string `json:"tech_stack"`
}

func (s *Scout) discover(ctx context.Context, sourceName string, job greenhouse.Job) (bool, error) {

	description := htmltext.Strip(job.Content)

	extracted, err := s.extract(ctx, job.Title, description)
	if err != nil {
		return false, fmt.Errorf("extraction failed: %w", err)
	}

	location := strings.TrimSpace(job.Location.Name)
	if location == "" {
		location = "unknown"
	}

	posting := &entities.Posting{
		Source:          sourceName,
		SourceID:        strconv.FormatInt(job.ID, 10),
		Company:         sourceName,
		Title:           job.Title,
		Level:           orUnknown(extracted.CareerLevel),
		Location:        location,
		RemoteMode:      orUnknown(extracted.RemoteMode),
		VisaSponsorship: orUnknown(extracted.VisaSponsorship),
		Description:     description,
		Extracted: entities.Extraction{
			Requirements:     extracted.Requirements,
			Responsibilities: extracted.Responsibilities,
			TechStack:        extracted.TechStack,
		},
		ApplyURL:   job.AbsoluteURL,
		PostedAt:   job.UpdatedAt.Time,
		FitReasons: []string{},
		RiskFlags:  []string{},
		Status:     entities.StatusDiscovered,
	}

	inserted, err := s.postings.Create(ctx, posting)
	if err != nil {
		return false, fmt.Errorf("insert failed: %w", err)
	}
	if !inserted {
		// second discovery of the same (source, sourceId) is a no-op
		return false, nil
	}

	metrics.PostingsDiscovered.Inc()

	next, _ := Next(StageScout, OutcomeDiscovered)
	if err := s.tasks.Enqueue(ctx, next.Queue(), PostingTask{PostingID: posting.ID}); err != nil {
		return true, fmt.Errorf("enqueue failed: %w", err)
	}
	return true, nil
}

func (s *Scout) extract(ctx context.Context, title string, description string) (scoutExtraction, error) {

	prompt := "Job title: " + title + "\nJob description:\n" + truncate(description, 8000)

	start := time.Now()
	response, err := s.reasoner.GenerateJSON(ctx, TierFast, scoutSystemPrompt, prompt)
	metrics.StageStepDuration.WithLabelValues("scout_extraction").Observe(time.Since(start).Seconds())

	if err != nil {
		return scoutExtraction{}, err
	}

	var extracted scoutExtraction
	if err := decodeModelJSON(response, &extracted); err != nil {
		// malformed-but-present response resolves to defaults, not failure
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Warnf("unparseable extraction response, using defaults: %v", err)
		return scoutExtraction{}, nil
	}
	return extracted, nil
}
