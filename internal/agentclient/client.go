// Package agentclient is the control-plane client for the sync agent
// running inside each preview VM.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lzjever/mbos-pvs/internal/core"
)

type Client struct {
	hc *http.Client
}

func New(timeout time.Duration) *Client {
	return &Client{hc: &http.Client{Timeout: timeout}}
}

type syncRequest struct {
	Files core.FileSnapshot `json:"files"`
}

type syncResponse struct {
	Success   bool   `json:"success"`
	FileCount int    `json:"fileCount"`
	Error     string `json:"error,omitempty"`
}

type updateRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ViteRunning bool   `json:"viteRunning"`
}

// Sync pushes a full snapshot to the agent and returns the number of files
// the agent wrote.
func (c *Client) Sync(ctx context.Context, syncURL string, files core.FileSnapshot) (int, error) {
	var resp syncResponse
	if err := c.post(ctx, syncURL+"/sync", syncRequest{Files: files}, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "agent reported sync failure"
		}
		return 0, core.NewAppError(core.ErrAgentError, msg)
	}
	return resp.FileCount, nil
}

// Update pushes a single changed file. The agent applies it without a
// dependency install or a dev-server restart.
func (c *Client) Update(ctx context.Context, syncURL, path, content string) error {
	return c.put(ctx, syncURL+"/update", updateRequest{Path: path, Content: content})
}

// Health reports whether the agent currently holds a dev-server process
// handle. This is handle-held, not liveness of the served app.
func (c *Client) Health(ctx context.Context, syncURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, syncURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, wrapTransport(err)
	}
	defer resp.Body.Close()
	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return false, fmt.Errorf("decode health response: %w", err)
	}
	return hr.ViteRunning, nil
}

func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	return c.send(ctx, http.MethodPost, url, body, out)
}

func (c *Client) put(ctx context.Context, url string, body interface{}) error {
	return c.send(ctx, http.MethodPut, url, body, nil)
}

func (c *Client) send(ctx context.Context, method, url string, body, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal agent request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(rb, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = fmt.Sprintf("agent returned %d", resp.StatusCode)
		}
		return core.NewAppError(core.ErrAgentError, msg)
	}
	if out != nil {
		if err := json.Unmarshal(rb, out); err != nil {
			return fmt.Errorf("decode agent response: %w", err)
		}
	}
	return nil
}

func wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewAppError(core.ErrAgentTimeout, "agent request timed out")
	}
	return core.NewAppError(core.ErrAgentError, fmt.Sprintf("agent unreachable: %s", err))
}
