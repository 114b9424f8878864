package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testServer(t *testing.T, installCmd []string) *Server {
	t.Helper()
	cfg := Config{
		ProjectRoot:    t.TempDir(),
		InstallCmd:     installCmd,
		DevServerCmd:   []string{"sleep", "60"},
		InstallTimeout: 10 * time.Second,
	}
	srv := NewServer(cfg, zap.NewNop())
	t.Cleanup(srv.Supervisor().Stop)
	return srv
}

func doSync(t *testing.T, srv *Server, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"files": files})
	req := httptest.NewRequest("POST", "/sync", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestSyncWritesFilesAndStartsProcess(t *testing.T) {
	srv := testServer(t, []string{"true"})

	w := doSync(t, srv, map[string]string{
		"package.json": `{"name":"app"}`,
		"src/App.tsx":  "export default App",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success   bool `json:"success"`
		FileCount int  `json:"fileCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %s", err)
	}
	if !resp.Success || resp.FileCount != 2 {
		t.Errorf("unexpected response %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(srv.cfg.ProjectRoot, "src", "App.tsx"))
	if err != nil {
		t.Fatalf("synced file missing: %s", err)
	}
	if string(data) != "export default App" {
		t.Errorf("unexpected content %q", data)
	}
	if !srv.Supervisor().Running() {
		t.Error("dev server not running after sync")
	}
}

func TestSyncDoesNotPrune(t *testing.T) {
	srv := testServer(t, []string{"true"})

	doSync(t, srv, map[string]string{"package.json": "{}", "src/old.tsx": "old"})
	w := doSync(t, srv, map[string]string{"package.json": "{}", "src/new.tsx": "new"})
	if w.Code != http.StatusOK {
		t.Fatalf("second sync failed: %s", w.Body.String())
	}

	if _, err := os.Stat(filepath.Join(srv.cfg.ProjectRoot, "src", "old.tsx")); err != nil {
		t.Errorf("file omitted from second snapshot was pruned: %s", err)
	}
}

func TestSyncRestartsProcessEachTime(t *testing.T) {
	srv := testServer(t, []string{"true"})

	doSync(t, srv, map[string]string{"a.txt": "1"})
	doSync(t, srv, map[string]string{"a.txt": "2"})
	if gen := srv.Supervisor().Generation(); gen != 2 {
		t.Errorf("expected 2 spawns, got %d", gen)
	}
}

func TestSyncInstallGate(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "installs.log")
	srv := testServer(t, []string{"sh", "-c", "echo run >> " + logPath})

	installs := func() int {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return 0
		}
		return bytes.Count(data, []byte("run"))
	}

	// First sync with a manifest installs.
	doSync(t, srv, map[string]string{"package.json": `{"deps":1}`})
	if installs() != 1 {
		t.Fatalf("expected 1 install, got %d", installs())
	}

	// Same manifest content: no reinstall.
	doSync(t, srv, map[string]string{"package.json": `{"deps":1}`, "src/x.ts": "x"})
	if installs() != 1 {
		t.Fatalf("unchanged manifest triggered reinstall, got %d", installs())
	}

	// Changed manifest: reinstall.
	doSync(t, srv, map[string]string{"package.json": `{"deps":2}`})
	if installs() != 2 {
		t.Fatalf("changed manifest did not trigger reinstall, got %d", installs())
	}
}

func TestSyncInstallFailureKeepsOldProcess(t *testing.T) {
	srv := testServer(t, []string{"true"})

	// Healthy first sync.
	doSync(t, srv, map[string]string{"package.json": `{"v":1}`})
	oldPid := srv.Supervisor().cmd.Process.Pid

	// Break the installer, then sync a changed manifest.
	srv.installer = NewInstaller(srv.cfg.ProjectRoot, []string{"false"}, time.Second, zap.NewNop())
	w := doSync(t, srv, map[string]string{"package.json": `{"v":2}`})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on install failure, got %d", w.Code)
	}

	// Previous dev server keeps running on stale-but-working code.
	if !processAlive(oldPid) {
		t.Error("previous dev server was torn down despite install failure")
	}
	if gen := srv.Supervisor().Generation(); gen != 1 {
		t.Errorf("failed install spawned a new process, generation %d", gen)
	}
}

func TestUpdateFastPath(t *testing.T) {
	srv := testServer(t, []string{"true"})
	doSync(t, srv, map[string]string{"src/App.tsx": "v1", "src/other.tsx": "other"})

	body, _ := json.Marshal(map[string]string{"path": "src/App.tsx", "content": "v2"})
	req := httptest.NewRequest("PUT", "/update", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	data, _ := os.ReadFile(filepath.Join(srv.cfg.ProjectRoot, "src", "App.tsx"))
	if string(data) != "v2" {
		t.Errorf("updated file content %q, want v2", data)
	}
	other, _ := os.ReadFile(filepath.Join(srv.cfg.ProjectRoot, "src", "other.tsx"))
	if string(other) != "other" {
		t.Errorf("untouched file content changed: %q", other)
	}
	// No restart on the fast path.
	if gen := srv.Supervisor().Generation(); gen != 1 {
		t.Errorf("single-file update restarted the dev server, generation %d", gen)
	}
}

func TestSyncRejectsBadPayloads(t *testing.T) {
	srv := testServer(t, []string{"true"})

	cases := []string{
		`{}`,
		`{"files":{}}`,
		`{"files":{"../escape.txt":"x"}}`,
		`{"files":{"/etc/passwd":"x"}}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/sync", bytes.NewReader([]byte(body)))
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", body, w.Code)
		}
	}
	if srv.Supervisor().Running() {
		t.Error("rejected sync spawned a process")
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := testServer(t, []string{"true"})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status      string `json:"status"`
		ViteRunning bool   `json:"viteRunning"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.ViteRunning {
		t.Errorf("unexpected health %+v", resp)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing permissive CORS header")
	}

	// Preflight.
	req = httptest.NewRequest("OPTIONS", "/sync", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("preflight: expected 200, got %d", w.Code)
	}

	// Unknown route.
	req = httptest.NewRequest("GET", "/nope", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route: expected 404, got %d", w.Code)
	}
}
