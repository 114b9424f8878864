package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lzjever/mbos-pvs/internal/core"
)

type StartPreviewRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

type StartPreviewResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	PreviewURL string `json:"previewUrl"`
	SyncURL    string `json:"syncUrl"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expiresAt"`
}

type ActiveSessionResponse struct {
	Active        bool   `json:"active"`
	SessionID     string `json:"sessionId,omitempty"`
	PreviewURL    string `json:"previewUrl,omitempty"`
	SyncURL       string `json:"syncUrl,omitempty"`
	Status        string `json:"status,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	LastActivity  string `json:"lastActivity,omitempty"`
	FileCount     int    `json:"fileCount,omitempty"`
	FilesSyncedAt string `json:"filesSyncedAt,omitempty"`
}

type SyncFilesRequest struct {
	WorkspaceID string            `json:"workspaceId"`
	Files       core.FileSnapshot `json:"files"`
}

type UpdateFileRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Path        string `json:"path"`
	Content     string `json:"content"`
}

type ExtendSessionRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

// StartPreview creates (or returns) the workspace's live preview session.
func (a *API) StartPreview(w http.ResponseWriter, r *http.Request) {
	var req StartPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid JSON body"))
		return
	}
	if req.WorkspaceID == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId is required"))
		return
	}

	sess, err := a.svc.StartPreview(r.Context(), req.WorkspaceID)
	if err != nil {
		WriteFailure(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, StartPreviewResponse{
		Success:    true,
		SessionID:  sess.ID,
		PreviewURL: sess.PreviewURL,
		SyncURL:    sess.SyncURL,
		Status:     string(sess.Status),
		ExpiresAt:  sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetActiveSession reports the workspace's current session, if any.
func (a *API) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId is required"))
		return
	}

	sess, err := a.svc.ActiveSession(r.Context(), workspaceID)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	if sess == nil {
		WriteJSON(w, http.StatusOK, ActiveSessionResponse{Active: false})
		return
	}

	resp := ActiveSessionResponse{
		Active:       true,
		SessionID:    sess.ID,
		PreviewURL:   sess.PreviewURL,
		SyncURL:      sess.SyncURL,
		Status:       string(sess.Status),
		ExpiresAt:    sess.ExpiresAt.UTC().Format(time.RFC3339),
		LastActivity: sess.LastActivityAt.UTC().Format(time.RFC3339),
		FileCount:    sess.FileCount,
	}
	if sess.FilesSyncedAt != nil {
		resp.FilesSyncedAt = sess.FilesSyncedAt.UTC().Format(time.RFC3339)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// StopPreview tears the workspace's session down. Idempotent.
func (a *API) StopPreview(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId is required"))
		return
	}

	if err := a.svc.StopPreview(r.Context(), workspaceID); err != nil {
		WriteFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SyncFiles pushes a full snapshot to the session's VM. When files is
// omitted the workspace's stored snapshot is used.
func (a *API) SyncFiles(w http.ResponseWriter, r *http.Request) {
	var req SyncFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid JSON body"))
		return
	}
	if req.WorkspaceID == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId is required"))
		return
	}

	res, err := a.svc.SyncFiles(r.Context(), req.WorkspaceID, req.Files)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"syncedAt":  res.SyncedAt.UTC().Format(time.RFC3339),
		"fileCount": res.FileCount,
	})
}

// UpdateFile pushes a single changed file without a full re-sync.
func (a *API) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid JSON body"))
		return
	}
	if req.WorkspaceID == "" || req.Path == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId and path are required"))
		return
	}

	updatedAt, err := a.svc.UpdateFile(r.Context(), req.WorkspaceID, req.Path, req.Content)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"path":      req.Path,
		"updatedAt": updatedAt.UTC().Format(time.RFC3339),
	})
}

// ExtendSession pushes the session deadline out.
func (a *API) ExtendSession(w http.ResponseWriter, r *http.Request) {
	var req ExtendSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid JSON body"))
		return
	}
	if req.WorkspaceID == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "workspaceId is required"))
		return
	}

	expiresAt, err := a.svc.ExtendSession(r.Context(), req.WorkspaceID)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("session extended until %s", expiresAt.UTC().Format(time.RFC3339)),
	})
}
