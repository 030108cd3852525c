package greenhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://boards-api.greenhouse.io/v1"

// A fetch that hangs must not stall the whole discovery pass, so every
// request runs under this deadline.
const fetchTimeout = 15 * time.Second

type getJobsResponse struct {
	Jobs []Job `json:"jobs"`
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads the public job-board feed of one or more organizations.
type Client struct {
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
	baseURL     string
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{}, baseURL: defaultBaseURL}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// GetJobs returns the organization's currently listed postings, including
// their raw markup-bearing descriptions.
func (c *Client) GetJobs(ctx context.Context, board string) ([]Job, error) {

	apiURL := fmt.Sprintf("%s/boards/%s/jobs?content=true", c.baseURL, board)

	body, err := c.sendRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}

	var jobsResponse getJobsResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&jobsResponse); err != nil {
		return nil, fmt.Errorf("error decoding JSON response: %v", err)
	}

	return jobsResponse.Jobs, nil
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, body io.Reader) ([]byte, error) {

	if c.rateLimiter != nil {
		err := c.rateLimiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %v, body: %v", resp.StatusCode, string(body))
	}

	return body, nil
}
