package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lzjever/mbos-pvs/internal/core"
)

func TestSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sync" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Files core.FileSnapshot `json:"files"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"fileCount": len(req.Files),
		})
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	n, err := c.Sync(context.Background(), srv.URL, core.FileSnapshot{
		"package.json": "{}",
		"src/App.tsx":  "export default null",
	})
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if n != 2 {
		t.Errorf("expected fileCount 2, got %d", n)
	}
}

func TestSync_AgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "npm install failed"})
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.Sync(context.Background(), srv.URL, core.FileSnapshot{"a.txt": "x"})
	if err == nil {
		t.Fatal("expected error from 500 response")
	}
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != core.ErrAgentError {
		t.Errorf("expected PVS_AGENT_ERROR, got %s", appErr.Code)
	}
	if appErr.Message != "npm install failed" {
		t.Errorf("expected agent error message to surface, got %q", appErr.Message)
	}
}

func TestSync_SuccessFalseIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "disk full",
		})
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.Sync(context.Background(), srv.URL, core.FileSnapshot{"a.txt": "x"})
	if err == nil {
		t.Fatal("200 with success:false was reported as a successful sync")
	}
	var appErr *core.AppError
	if !errors.As(err, &appErr) || appErr.Code != core.ErrAgentError {
		t.Fatalf("expected PVS_AGENT_ERROR, got %v", err)
	}
	if appErr.Message != "disk full" {
		t.Errorf("expected agent error message to surface, got %q", appErr.Message)
	}
}

func TestUpdate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/update" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotPath = req.Path
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "path": req.Path})
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	if err := c.Update(context.Background(), srv.URL, "src/App.tsx", "new content"); err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if gotPath != "src/App.tsx" {
		t.Errorf("expected path src/App.tsx, got %q", gotPath)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "viteRunning": true})
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	running, err := c.Health(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Health failed: %s", err)
	}
	if !running {
		t.Error("expected viteRunning true")
	}
}

func TestSync_Unreachable(t *testing.T) {
	c := New(time.Second)
	_, err := c.Sync(context.Background(), "http://127.0.0.1:1", core.FileSnapshot{"a": "b"})
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != core.ErrAgentError && appErr.Code != core.ErrAgentTimeout {
		t.Errorf("unexpected code %s", appErr.Code)
	}
}
