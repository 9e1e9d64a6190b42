package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civiclab/ballotsim/pkg/throttle"
)

// Client talks to the study backend's experiment endpoints. It carries
// no retry or rate logic of its own; callers wrap each method in the
// shared resilient client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a backend client.
// endpoint defaults to "http://127.0.0.1:3001" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:3001"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Initialize registers the participant and returns its assigned
// identity and condition.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	var resp InitializeResponse
	if err := c.post(ctx, "/experiment/initialize", req, &resp); err != nil {
		return nil, err
	}
	if resp.ParticipantID == "" {
		return nil, fmt.Errorf("initialize returned no participant id")
	}
	return &resp, nil
}

// Baseline submits the pre-chat survey.
func (c *Client) Baseline(ctx context.Context, req BaselineRequest) error {
	return c.post(ctx, "/experiment/baseline", req, nil)
}

// SendChat posts one user message and returns the chatbot's reply.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	var resp ChatResponse
	if err := c.post(ctx, "/chat/message", req, &resp); err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Donation records the donation decision.
func (c *Client) Donation(ctx context.Context, req DonationRequest) error {
	return c.post(ctx, "/experiment/donation", req, nil)
}

// PostMeasures submits the post-survey.
func (c *Client) PostMeasures(ctx context.Context, req PostMeasuresRequest) error {
	return c.post(ctx, "/experiment/post-measures", req, nil)
}

// post sends a JSON body and decodes the response into out when out is
// non-nil. Any non-2xx status surfaces as a throttle.StatusError so the
// retry classifier can tell transient failures from malformed requests.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return throttle.NewStatusError(resp.StatusCode, string(bytes.TrimSpace(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
