// Package stages holds the five pipeline processing units and the state
// machine wiring between them. Control flow is queue-mediated only: a stage
// never calls another stage, it enqueues the successor's task.
package stages

import "context"

type Stage string

const (
	StageScout      Stage = "scout"
	StageNormalize  Stage = "normalize"
	StageFitScore   Stage = "fitscore"
	StageMaterials  Stage = "materials"
	StageCompliance Stage = "compliance"
)

// Queue returns the broker queue name a stage consumes.
func (s Stage) Queue() string {
	return string(s)
}

type Outcome string

const (
	OutcomeDiscovered  Outcome = "discovered"
	OutcomeNormalized  Outcome = "normalized"
	OutcomeShortlisted Outcome = "shortlisted"
	OutcomeArchived    Outcome = "archived"
	OutcomeDrafted     Outcome = "drafted"
	OutcomePassed      Outcome = "passed"
	OutcomeFailed      Outcome = "failed"
)

type transition struct {
	stage   Stage
	outcome Outcome
}

// transitions is the full automated pipeline graph. Missing pairs are
// terminal: archived and passed stay where they are, failed waits for a
// human to re-enqueue a materials task (see ReentryStage).
var transitions = map[transition]Stage{
	{StageScout, OutcomeDiscovered}:     StageNormalize,
	{StageNormalize, OutcomeNormalized}: StageFitScore,
	{StageFitScore, OutcomeShortlisted}: StageMaterials,
	{StageMaterials, OutcomeDrafted}:    StageCompliance,
}

// Next resolves the successor stage for an outcome. ok is false for
// terminal outcomes.
func Next(stage Stage, outcome Outcome) (Stage, bool) {
	next, ok := transitions[transition{stage, outcome}]
	return next, ok
}

// ReentryStage is where a posting stuck in drafting after a compliance
// failure re-enters the pipeline. Re-entry is never automatic; it is
// triggered from outside (the operator bot).
const ReentryStage = StageMaterials

// Model tiers requested from the reasoner: fast for extraction and
// normalization, deep for drafting and verification.
const (
	TierFast = "fast"
	TierDeep = "deep"
)

// Reasoner is the external text-completion capability. Responses are
// free text expected to parse as JSON, possibly malformed.
type Reasoner interface {
	GenerateJSON(ctx context.Context, tier string, system string, user string) (string, error)
}

// Enqueuer persists the next stage's task durably.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}
