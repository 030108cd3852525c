package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Tier selects the model family for a request: fast for cheap extraction
// and normalization, deep for drafting and verification.
const (
	TierFast = "fast"
	TierDeep = "deep"
)

type Client struct {
	client            *genai.Client
	fastModel         string
	deepModel         string
	models            map[string]*genai.GenerativeModel
	modelsMu          sync.Mutex
	minuteRateLimiter *rate.Limiter
	dayRateLimiter    *rate.Limiter
}

func NewClient(ctx context.Context, apiKey string, fastModel string, deepModel string) (*Client, error) {

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    client,
		fastModel: fastModel,
		deepModel: deepModel,
		models:    map[string]*genai.GenerativeModel{},
	}, nil
}

func (c *Client) SetMinuteRateLimit(maxRequestsPerMinute float32) {
	c.minuteRateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerMinute/60), 1)
}

func (c *Client) SetDayRateLimit(maxRequestsPerDay float32) {
	c.dayRateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerDay/86400), int(maxRequestsPerDay))
}

// GenerateJSON sends a system-instructed prompt and returns the raw model
// text, which callers parse defensively. Internal 500s are retried here so a
// flaky backend does not immediately surface as a task failure.
func (c *Client) GenerateJSON(ctx context.Context, tier string, system string, user string) (string, error) {

	var resp string
	var err error

	_, _, _ = lo.AttemptWhileWithDelay(3, 2*time.Second, func(i int, _ time.Duration) (error, bool) {
		if i > 0 {
			log.Warn("gemini api returned 500 error, retrying...")
		}
		resp, err = c.waitAndGenerate(ctx, tier, system, user)
		return err, isInternalError(err)
	})

	return resp, err
}

func (c *Client) waitAndGenerate(ctx context.Context, tier string, system string, user string) (string, error) {

	limiters := []*rate.Limiter{c.minuteRateLimiter, c.dayRateLimiter}
	for _, limiter := range limiters {
		if limiter != nil {
			err := limiter.Wait(ctx)
			if err != nil {
				return "", err
			}
		}
	}

	return c.tryGenerate(ctx, c.model(tier, system), user)
}

// model returns a configured generative model per (tier, system instruction)
// pair. Models are stateless request templates, so caching them is safe.
func (c *Client) model(tier string, system string) *genai.GenerativeModel {
	name := c.fastModel
	if tier == TierDeep {
		name = c.deepModel
	}

	key := tier + "\x00" + system

	c.modelsMu.Lock()
	defer c.modelsMu.Unlock()

	if model, ok := c.models[key]; ok {
		return model
	}

	model := c.client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	c.models[key] = model
	return model
}

func (c *Client) tryGenerate(ctx context.Context, model *genai.GenerativeModel, user string) (string, error) {

	response, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("response has no content")
	}

	part := response.Candidates[0].Content.Parts[0]

	if textPart, ok := part.(genai.Text); ok {
		return string(textPart), nil
	}

	return "", fmt.Errorf("response part is not text")
}

func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Error 500")
}
