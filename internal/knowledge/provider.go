// Package knowledge loads the static reference documents injected into
// reasoning prompts. Documents are re-read on every call: they are versioned
// files an operator may edit while the pipeline runs, and task invocations
// must see the latest state.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Bullet struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

type Story struct {
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

type Constraints struct {
	Dealbreakers []string `yaml:"dealbreakers"`
}

type Preferences struct {
	Locations     []string `yaml:"locations"`
	RemoteOnly    bool     `yaml:"remote_only"`
	EarliestStart string   `yaml:"earliest_start"`
}

type Resume struct {
	Text string `yaml:"text"`
}

// EvaluationContext carries everything the fit-scoring prompt needs.
type EvaluationContext struct {
	Constraints Constraints
	Preferences Preferences
	RoleTargets []string
	Skills      []string
}

// DraftingContext carries the full grounding material for drafting:
// the base resume, the pre-approved bullet library, the metrics allowlist,
// the story bank, why-company templates and style rules.
type DraftingContext struct {
	Resume           Resume
	Bullets          []Bullet
	MetricsAllowlist []string
	Stories          []Story
	WhyCompany       []string
	StyleRules       []string
	Skills           []string
}

// ComplianceContext carries only what verification checks against.
type ComplianceContext struct {
	MetricsAllowlist []string
	StyleRules       []string
}

type Provider struct {
	dir string
}

func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) EvaluationContext() (*EvaluationContext, error) {
	var knowledgeContext EvaluationContext
	var targets, skills struct {
		Items []string `yaml:"items"`
	}

	if err := p.read("constraints.yaml", &knowledgeContext.Constraints); err != nil {
		return nil, err
	}
	if err := p.read("preferences.yaml", &knowledgeContext.Preferences); err != nil {
		return nil, err
	}
	if err := p.read("targets.yaml", &targets); err != nil {
		return nil, err
	}
	if err := p.read("skills.yaml", &skills); err != nil {
		return nil, err
	}

	knowledgeContext.RoleTargets = targets.Items
	knowledgeContext.Skills = skills.Items
	return &knowledgeContext, nil
}

func (p *Provider) DraftingContext() (*DraftingContext, error) {
	var knowledgeContext DraftingContext
	var bullets struct {
		Items []Bullet `yaml:"items"`
	}
	var stories struct {
		Items []Story `yaml:"items"`
	}
	var metrics, templates, style, skills struct {
		Items []string `yaml:"items"`
	}

	if err := p.read("resume.yaml", &knowledgeContext.Resume); err != nil {
		return nil, err
	}
	if err := p.read("bullets.yaml", &bullets); err != nil {
		return nil, err
	}
	if err := p.read("metrics.yaml", &metrics); err != nil {
		return nil, err
	}
	if err := p.read("stories.yaml", &stories); err != nil {
		return nil, err
	}
	if err := p.read("templates.yaml", &templates); err != nil {
		return nil, err
	}
	if err := p.read("style.yaml", &style); err != nil {
		return nil, err
	}
	if err := p.read("skills.yaml", &skills); err != nil {
		return nil, err
	}

	knowledgeContext.Bullets = bullets.Items
	knowledgeContext.Stories = stories.Items
	knowledgeContext.MetricsAllowlist = metrics.Items
	knowledgeContext.WhyCompany = templates.Items
	knowledgeContext.StyleRules = style.Items
	knowledgeContext.Skills = skills.Items
	return &knowledgeContext, nil
}

func (p *Provider) ComplianceContext() (*ComplianceContext, error) {
	var knowledgeContext ComplianceContext
	var metrics, style struct {
		Items []string `yaml:"items"`
	}

	if err := p.read("metrics.yaml", &metrics); err != nil {
		return nil, err
	}
	if err := p.read("style.yaml", &style); err != nil {
		return nil, err
	}

	knowledgeContext.MetricsAllowlist = metrics.Items
	knowledgeContext.StyleRules = style.Items
	return &knowledgeContext, nil
}

func (p *Provider) read(name string, out any) error {
	raw, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return fmt.Errorf("failed to read knowledge document %v: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse knowledge document %v: %w", name, err)
	}
	return nil
}
