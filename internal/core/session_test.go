package core

import (
	"testing"
	"time"
)

func TestSessionActive(t *testing.T) {
	active := map[SessionStatus]bool{
		SessionStarting: true,
		SessionRunning:  true,
		SessionStopping: false,
		SessionStopped:  false,
		SessionError:    false,
	}
	for status, want := range active {
		s := PreviewSession{Status: status}
		if s.Active() != want {
			t.Errorf("Active() for %s = %v, want %v", status, s.Active(), want)
		}
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := PreviewSession{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("session expired before its deadline")
	}
	if !s.Expired(now.Add(2 * time.Minute)) {
		t.Error("session not expired after its deadline")
	}
}
