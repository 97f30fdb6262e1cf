package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("lock file missing pid: %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file not removed after release")
	}
	// Release is idempotent.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer lock.Release()

	_, err = AcquireLock(dir)
	if err == nil {
		t.Fatal("second AcquireLock succeeded while lock held")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T: %v", err, err)
	}
	if !strings.Contains(lockErr.Error(), "SurveyPipe") {
		t.Errorf("error message missing instance hint: %v", lockErr)
	}
	// The holder's pid must survive the failed second attempt so the
	// error can name the conflicting process.
	if !strings.Contains(lockErr.ExistingInfo, "PID") || !strings.Contains(lockErr.ExistingInfo, "running") {
		t.Errorf("existing process info missing: %q", lockErr.ExistingInfo)
	}
	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil || !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("holder's lock info clobbered: %q, %v", data, err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	lock2, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	lock2.Release()
}

func TestExtractPIDFromLockInfo(t *testing.T) {
	if pid := extractPIDFromLockInfo("pid=1234\n"); pid != 1234 {
		t.Errorf("pid = %d, want 1234", pid)
	}
	if pid := extractPIDFromLockInfo("garbage"); pid != 0 {
		t.Errorf("pid = %d, want 0", pid)
	}
}
