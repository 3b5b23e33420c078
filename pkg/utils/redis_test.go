package utils

import (
	"context"
	"testing"
)

func TestJobLockScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if jobLockAcquireScript == nil || jobLockReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestJobLockKey(t *testing.T) {
	if got := jobLockKey("daily"); got != "maintenance:lock:daily" {
		t.Fatalf("unexpected lock key %q", got)
	}
}

func TestAcquireJobLock_RejectsInvalidArgs(t *testing.T) {
	l := NewRedisJobLock(nil, "owner")
	if _, err := l.AcquireJobLock(context.Background(), "daily", 0); err == nil {
		t.Fatalf("expected error for missing client")
	}
}
