package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// Client talks to the routing engine's REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client pointing at the given base URL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// RegisterRoster posts agents to /api/agents/roster and returns how many were accepted
func (c *Client) RegisterRoster(ctx context.Context, agents []types.Agent) (int, error) {
	var resp struct {
		Registered int      `json:"registered"`
		Errors     []string `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/agents/roster", agents, &resp); err != nil {
		return 0, err
	}
	return resp.Registered, nil
}

// RouteCall asks the engine for a routing decision
func (c *Client) RouteCall(ctx context.Context, cc types.CallContext) (types.RoutingDecision, error) {
	var d types.RoutingDecision
	err := c.do(ctx, http.MethodPost, "/api/route", cc, &d)
	return d, err
}

// ListAgents returns the engine's view of every agent
func (c *Client) ListAgents(ctx context.Context) ([]types.Agent, error) {
	var resp struct {
		Agents []types.Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// CompleteCall reports the end of an agent's current call
func (c *Client) CompleteCall(ctx context.Context, agentID string, outcome types.CallOutcome) error {
	return c.do(ctx, http.MethodPost, "/api/agents/"+agentID+"/complete", outcome, nil)
}

// Abandon reports that a waiting caller hung up. It returns false when the
// call had already left its queue.
func (c *Client) Abandon(ctx context.Context, callID string) (bool, error) {
	var resp struct {
		Removed bool `json:"removed"`
	}
	err := c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/abandon", nil, &resp)
	return resp.Removed, err
}

// SetStatus changes an agent's status
func (c *Client) SetStatus(ctx context.Context, agentID string, status types.AgentStatus) error {
	body := map[string]types.AgentStatus{"status": status}
	return c.do(ctx, http.MethodPut, "/api/agents/"+agentID+"/status", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
