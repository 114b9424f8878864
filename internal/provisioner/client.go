// Package provisioner talks to the external VM provisioning facility.
// One VM backs one workspace; the facility owns VM placement and imaging,
// this client only asks for an address or a teardown.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VM describes a provisioned preview VM and its derived endpoints.
type VM struct {
	ID         string `json:"vm_id"`
	Address    string `json:"address"`
	SyncURL    string `json:"sync_url"`
	PreviewURL string `json:"preview_url"`
}

// APIError carries the HTTP status code from a provisioner response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

type Client struct {
	baseURL string
	hc      *http.Client

	syncPort    int
	previewPort int
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		hc:          &http.Client{Timeout: timeout},
		syncPort:    8443,
		previewPort: 5173,
	}
}

// EnsureVM returns the workspace's VM, creating one if none exists.
// The call is idempotent on the provisioner side.
func (c *Client) EnsureVM(ctx context.Context, workspaceID string) (*VM, error) {
	body, _ := json.Marshal(map[string]string{"workspace_id": workspaceID})
	rb, err := c.do(ctx, http.MethodPost, "/v1/vms/ensure", body, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("ensure vm for %s: %w", workspaceID, err)
	}
	var vm VM
	if err := json.Unmarshal(rb, &vm); err != nil {
		return nil, fmt.Errorf("decode ensure response: %w", err)
	}
	if vm.SyncURL == "" {
		vm.SyncURL = fmt.Sprintf("http://%s:%d", vm.Address, c.syncPort)
	}
	if vm.PreviewURL == "" {
		vm.PreviewURL = fmt.Sprintf("http://%s:%d", vm.Address, c.previewPort)
	}
	return &vm, nil
}

// DestroyVM tears down a VM. Missing VMs are treated as already destroyed.
func (c *Client) DestroyVM(ctx context.Context, vmID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/vms/"+vmID, nil, http.StatusOK)
	var apiErr *APIError
	if err != nil {
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("destroy vm %s: %w", vmID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, expectedStatus int) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		return nil, &APIError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("%s %s -> %d: %s", method, path, resp.StatusCode, rb),
		}
	}
	return rb, nil
}
