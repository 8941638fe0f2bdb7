//go:build e2e

package e2e

import (
	"strings"
	"testing"
)

// Smoke tests against a running server started with the default agents.

func TestSlashHelp(t *testing.T) {
	base := liveServer(t)
	reply := postCommand(t, base, "/help")
	if !strings.Contains(reply, "/help") {
		t.Errorf("expected response to contain '/help', got: %s", reply)
	}
}

func TestSlashAgents(t *testing.T) {
	base := liveServer(t)
	reply := postCommand(t, base, "/agents")
	for _, name := range []string{"WriteBot", "CodeBot", "ResearchBot", "CommandBot", "SummaryBot"} {
		if !strings.Contains(reply, name) {
			t.Errorf("expected %s in: %s", name, reply)
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	base := liveServer(t)
	reply := postCommand(t, base, `/add command smoke {"command":"echo smoke"}`)
	if !strings.HasPrefix(reply, "Task created with ID: ") {
		t.Fatalf("add reply = %q", reply)
	}
	id := strings.TrimPrefix(reply, "Task created with ID: ")
	postCommand(t, base, "/process")
	reply = postCommand(t, base, "/task "+id)
	if !strings.Contains(reply, "status: completed") {
		t.Errorf("task reply = %s", reply)
	}
}
