package stages

import (
	"context"
	"sync"
	"time"

	"github.com/applyflow/applyflow/internal/clients/greenhouse"
	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/knowledge"
	"gorm.io/gorm"
)

type fakePostingStore struct {
	mu       sync.Mutex
	nextID   int
	postings map[int]*entities.Posting
	byKey    map[string]int
}

func newFakePostingStore() *fakePostingStore {
	return &fakePostingStore{postings: map[int]*entities.Posting{}, byKey: map[string]int{}}
}

func (f *fakePostingStore) Create(_ context.Context, posting *entities.Posting) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := posting.Source + "/" + posting.SourceID
	if _, exists := f.byKey[key]; exists {
		return false, nil
	}

	f.nextID++
	posting.ID = f.nextID
	stored := *posting
	f.postings[posting.ID] = &stored
	f.byKey[key] = posting.ID
	return true, nil
}

func (f *fakePostingStore) GetByID(_ context.Context, id int) (*entities.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	posting, ok := f.postings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *posting
	return &copied, nil
}

func (f *fakePostingStore) UpdateFields(_ context.Context, id int, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	posting := f.postings[id]
	for column, value := range fields {
		text, _ := value.(string)
		switch column {
		case "title":
			posting.Title = text
		case "level":
			posting.Level = text
		case "remote_mode":
			posting.RemoteMode = text
		case "visa_sponsorship":
			posting.VisaSponsorship = text
		case "location":
			posting.Location = text
		case "notes":
			posting.Notes = text
		}
	}
	return nil
}

func (f *fakePostingStore) SetStatus(_ context.Context, id int, status entities.PostingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postings[id].Status = status
	return nil
}

func (f *fakePostingStore) UpdateEvaluation(_ context.Context, id int, score int,
	reasons []string, risks []string, status entities.PostingStatus) error {

	f.mu.Lock()
	defer f.mu.Unlock()
	posting := f.postings[id]
	posting.FitScore = score
	posting.FitReasons = reasons
	posting.RiskFlags = risks
	posting.Status = status
	return nil
}

func (f *fakePostingStore) add(posting entities.Posting) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	posting.ID = f.nextID
	f.postings[posting.ID] = &posting
	f.byKey[posting.Source+"/"+posting.SourceID] = posting.ID
	return posting.ID
}

func (f *fakePostingStore) get(id int) entities.Posting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.postings[id]
}

type enqueuedTask struct {
	queue   string
	payload any
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, queue string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{queue: queue, payload: payload})
	return nil
}

func (f *fakeEnqueuer) all() []enqueuedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueuedTask{}, f.tasks...)
}

type reasonerCall struct {
	tier   string
	system string
	user   string
}

type fakeReasoner struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []reasonerCall
}

func (f *fakeReasoner) GenerateJSON(_ context.Context, tier string, system string, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, reasonerCall{tier: tier, system: system, user: user})
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "{}", nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

func (f *fakeReasoner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFollowUps struct {
	mu        sync.Mutex
	scheduled map[int]map[int]time.Time
}

func newFakeFollowUps() *fakeFollowUps {
	return &fakeFollowUps{scheduled: map[int]map[int]time.Time{}}
}

func (f *fakeFollowUps) Schedule(_ context.Context, postingID int, number int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.scheduled[postingID] == nil {
		f.scheduled[postingID] = map[int]time.Time{}
	}
	if _, exists := f.scheduled[postingID][number]; exists {
		return nil
	}
	f.scheduled[postingID][number] = at
	return nil
}

func (f *fakeFollowUps) forPosting(postingID int) map[int]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled[postingID]
}

type fakeResumes struct {
	mu       sync.Mutex
	versions []entities.ResumeVersion
}

func (f *fakeResumes) Add(_ context.Context, version *entities.ResumeVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	version.ID = len(f.versions) + 1
	f.versions = append(f.versions, *version)
	return nil
}

type fakeApplications struct {
	mu        sync.Mutex
	byPosting map[int]entities.Application
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{byPosting: map[int]entities.Application{}}
}

func (f *fakeApplications) Create(_ context.Context, application *entities.Application) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byPosting[application.PostingID]; exists {
		return false, nil
	}
	application.ID = len(f.byPosting) + 1
	f.byPosting[application.PostingID] = *application
	return true, nil
}

type fakeKnowledge struct{}

func (fakeKnowledge) EvaluationContext() (*knowledge.EvaluationContext, error) {
	return &knowledge.EvaluationContext{
		Constraints: knowledge.Constraints{Dealbreakers: []string{"unpaid position"}},
		Preferences: knowledge.Preferences{Locations: []string{"Berlin"}},
		RoleTargets: []string{"software engineering intern"},
		Skills:      []string{"Go"},
	}, nil
}

func (fakeKnowledge) DraftingContext() (*knowledge.DraftingContext, error) {
	return &knowledge.DraftingContext{
		Resume:           knowledge.Resume{Text: "base resume text"},
		Bullets:          []knowledge.Bullet{{ID: "b1", Text: "did a thing"}},
		MetricsAllowlist: []string{"40% runtime reduction"},
		StyleRules:       []string{"active voice"},
	}, nil
}

func (fakeKnowledge) ComplianceContext() (*knowledge.ComplianceContext, error) {
	return &knowledge.ComplianceContext{
		MetricsAllowlist: []string{"40% runtime reduction"},
		StyleRules:       []string{"active voice"},
	}, nil
}

type fakeSource struct {
	name string
	jobs []greenhouse.Job
	err  error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Jobs(context.Context) ([]greenhouse.Job, error) {
	return f.jobs, f.err
}
