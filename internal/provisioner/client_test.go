package provisioner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEnsureVM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/vms/ensure" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["workspace_id"] != "ws-1" {
			t.Errorf("unexpected workspace_id %q", req["workspace_id"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"vm_id":   "vm-42",
			"address": "10.0.0.9",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	vm, err := c.EnsureVM(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("EnsureVM failed: %s", err)
	}
	if vm.ID != "vm-42" {
		t.Errorf("expected vm-42, got %s", vm.ID)
	}
	if vm.SyncURL != "http://10.0.0.9:8443" {
		t.Errorf("expected derived sync url, got %s", vm.SyncURL)
	}
	if vm.PreviewURL != "http://10.0.0.9:5173" {
		t.Errorf("expected derived preview url, got %s", vm.PreviewURL)
	}
}

func TestEnsureVM_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "capacity exhausted", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.EnsureVM(context.Background(), "ws-1"); err == nil {
		t.Fatal("expected error from 503 response")
	}
}

func TestDestroyVM_NotFoundIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if err := c.DestroyVM(context.Background(), "vm-gone"); err != nil {
		t.Fatalf("expected destroy of missing VM to succeed, got %s", err)
	}
}
