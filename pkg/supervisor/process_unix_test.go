//go:build linux

package supervisor_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"cargo-fixture/pkg/supervisor"
)

// gone reports whether pid has exited. A zombie counts as exited: in a
// container nobody may reap orphans.
func gone(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return true
	}
	// The state follows the parenthesised command name.
	s := string(stat)
	if i := strings.LastIndexByte(s, ')'); i >= 0 && i+2 < len(s) {
		return s[i+2] == 'Z'
	}
	return false
}

// TestKillKillsProcessGroup covers a fixture that spawns its own children:
// killing the fixture must take the whole tree down.
//
// Process tree: sh → sleep 3600 (background child).
func TestKillKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	cmd := exec.Command("sh", "-c", "sleep 3600 & echo $! > "+pidFile+"; wait") //nolint:gosec,noctx // test

	p, err := supervisor.Start(cmd, "fixture process")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var childPID int
	deadline := time.Now().Add(5 * time.Second)
	for childPID == 0 && time.Now().Before(deadline) {
		if b, err := os.ReadFile(pidFile); err == nil && strings.HasSuffix(string(b), "\n") {
			childPID, _ = strconv.Atoi(strings.TrimSpace(string(b)))
		}
		time.Sleep(10 * time.Millisecond)
	}
	if childPID == 0 {
		t.Fatal("background child never started")
	}

	p.Kill()
	waitDone(t, p.Done(), 10*time.Second)

	deadline = time.Now().Add(5 * time.Second)
	for !gone(childPID) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild %d survived the process group kill", childPID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
