package checker

import (
	"testing"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

func TestConnectivityResultPassesOnZeroExit(t *testing.T) {
	host := task.HostSpec{Host: "10.0.0.1", Port: 22, Owner: task.CredentialSet{User: "deploy"}}
	r := connectivityResult(&sshexec.CommandResult{ExitCode: 0}, host)
	if !r.Passed || r.Level != LevelInfo {
		t.Fatalf("expected passing info result, got %+v", r)
	}
}

func TestConnectivityResultFailsOnNonZeroExit(t *testing.T) {
	host := task.HostSpec{Host: "10.0.0.1", Port: 22}
	r := connectivityResult(&sshexec.CommandResult{ExitCode: 1, Stderr: "denied"}, host)
	if r.Passed || r.Level != LevelError {
		t.Fatalf("expected error-level failure, got %+v", r)
	}
}
