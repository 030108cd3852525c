package tests

import (
	"context"
	"strings"
	"sync"

	"github.com/applyflow/applyflow/internal/clients/greenhouse"
)

type mockBoard struct {
	name string
	jobs []greenhouse.Job
	err  error
}

func (m mockBoard) Name() string {
	return m.name
}

func (m mockBoard) Jobs(ctx context.Context) ([]greenhouse.Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.jobs, nil
}

// mockReasoner routes by the system prompt, so one mock serves all five
// stages of a pipeline run.
type mockReasoner struct {
	mu         sync.Mutex
	extraction string
	normalized string
	evaluation string
	drafts     string
	verdict    string
	calls      map[string]int
}

func newMockReasoner() *mockReasoner {
	return &mockReasoner{
		extraction: `{"career_level": "intern", "remote_mode": "hybrid", "visa_sponsorship": "unknown",
			"requirements": ["Go"], "responsibilities": ["build services"], "tech_stack": ["Go", "PostgreSQL"]}`,
		normalized: `{"title": null, "level": "intern", "remote_mode": null, "visa_sponsorship": null, "location": null}`,
		evaluation: `{"score": 85, "reasoning": ["matches target role"], "risk_flags": [],
			"recommendation": "apply", "keyword_matches": ["Go"]}`,
		drafts: `{"cover_letter": "Dear team, I build Go services.",
			"tailored_bullets": ["b1", "b2", "b3", "b4", "b5"],
			"why_company": "I admire the engineering culture.",
			"answers": {"Why this role?": "It matches my target."}}`,
		verdict: `{"pass": true, "flags": []}`,
		calls:   map[string]int{},
	}
}

func (m *mockReasoner) GenerateJSON(ctx context.Context, tier string, system string, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(system, "extract structured facts"):
		m.calls["extract"]++
		return m.extraction, nil
	case strings.Contains(system, "normalize messy"):
		m.calls["normalize"]++
		return m.normalized, nil
	case strings.Contains(system, "score how well"):
		m.calls["evaluate"]++
		return m.evaluation, nil
	case strings.Contains(system, "draft job application materials"):
		m.calls["draft"]++
		return m.drafts, nil
	case strings.Contains(system, "audit drafted"):
		m.calls["verify"]++
		return m.verdict, nil
	}
	return "{}", nil
}

func (m *mockReasoner) callCount(step string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[step]
}
