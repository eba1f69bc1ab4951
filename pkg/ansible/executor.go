package ansible

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/apenella/go-ansible/v2/pkg/execute"
	"github.com/apenella/go-ansible/v2/pkg/playbook"
)

// Executor runs a Playbook/Inventory pair against one host using
// go-ansible's AnsiblePlaybookCmd, rather than shelling out to the
// ansible-playbook binary directly.
type Executor struct {
	workDir string
}

// NewExecutor creates an executor that materializes playbooks and
// inventories under workDir before invoking Ansible against them.
func NewExecutor(workDir string) *Executor {
	return &Executor{workDir: workDir}
}

// Execute writes pb and inv to temp files under a run-scoped directory and
// runs the playbook, streaming one TaskEvent per classified output line to
// onEvent as Ansible produces it. ctx is handed to go-ansible's
// DefaultExecute.Execute, which stops the ansible-playbook child process
// when ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, pb *Playbook, inv *Inventory, opts ExecuteOptions, onEvent EventHandler) (*ExecuteResult, error) {
	runDir, err := os.MkdirTemp(e.workDir, "playbook-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer os.RemoveAll(runDir)

	playbookPath := filepath.Join(runDir, "playbook.yml")
	playbookYAML, err := pb.ToYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to render playbook: %w", err)
	}
	if err := os.WriteFile(playbookPath, playbookYAML, 0644); err != nil {
		return nil, fmt.Errorf("failed to write playbook: %w", err)
	}

	inventoryPath := filepath.Join(runDir, "inventory.ini")
	if err := os.WriteFile(inventoryPath, []byte(inv.ToINI()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write inventory: %w", err)
	}

	playbookOptions := &playbook.AnsiblePlaybookOptions{
		Inventory: inventoryPath,
		Check:     opts.Check,
		Diff:      opts.Diff,
		Limit:     opts.Limit,
	}
	for key, value := range opts.ExtraVars {
		_ = playbookOptions.AddExtraVar(key, value)
	}

	if opts.BecomeUser != "" {
		playbookOptions.Become = true
		playbookOptions.BecomeUser = opts.BecomeUser
	}

	if opts.User != "" {
		playbookOptions.User = opts.User
	}
	if opts.PrivateKey != "" {
		playbookOptions.PrivateKey = opts.PrivateKey
	}

	lw := &lineWriter{onEvent: onEvent}

	cmd := &playbook.AnsiblePlaybookCmd{
		Playbooks:       []string{playbookPath},
		PlaybookOptions: playbookOptions,
	}

	exec := execute.NewDefaultExecute(
		execute.WithCmd(cmd),
		execute.WithWrite(lw),
		execute.WithCmdRunDir(runDir),
	)

	runErr := exec.Execute(ctx)

	output := lw.String()
	stats := parsePlaybookStats(output)
	result := &ExecuteResult{
		Output:  output,
		Stats:   stats,
		Success: runErr == nil && stats.Failures == 0 && stats.Unreachable == 0,
		Error:   runErr,
	}
	return result, runErr
}

// lineWriter splits the combined Ansible output stream into lines as they
// arrive, classifies each one, and forwards it both to the in-memory
// buffer (for recap parsing) and to the caller's event handler.
type lineWriter struct {
	mu      sync.Mutex
	buf     strings.Builder
	partial string
	onEvent EventHandler
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	w.partial += string(p)

	for {
		idx := strings.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		line := w.partial[:idx]
		w.partial = w.partial[idx+1:]
		if w.onEvent != nil {
			if ev, ok := classifyLine(line); ok {
				w.onEvent(ev)
			}
		}
	}
	return len(p), nil
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

var (
	taskLinePattern   = regexp.MustCompile(`^TASK \[(.+)\]`)
	resultLinePattern = regexp.MustCompile(`^(ok|changed|failed|fatal|skipping|unreachable)\s*:\s*\[([^\]]+)\]`)
)

func classifyLine(line string) (TaskEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return TaskEvent{}, false
	}

	if m := taskLinePattern.FindStringSubmatch(trimmed); m != nil {
		return TaskEvent{Task: m[1], Action: "start", Message: trimmed}, true
	}

	if m := resultLinePattern.FindStringSubmatch(trimmed); m != nil {
		action := m[1]
		if action == "fatal" {
			action = "failed"
		}
		return TaskEvent{Host: m[2], Action: action, Message: trimmed}, true
	}

	return TaskEvent{}, false
}

// parsePlaybookStats extracts the PLAY RECAP totals from combined output,
// since go-ansible's JSON callback schema varies by Ansible version and the
// textual recap is the one stable surface every version prints.
func parsePlaybookStats(output string) RunStats {
	var stats RunStats
	scanner := bufio.NewScanner(strings.NewReader(output))
	inRecap := false

	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "PLAY RECAP") {
			inRecap = true
			continue
		}
		if !inRecap {
			continue
		}
		stats.Ok += extractCount(line, "ok")
		stats.Changed += extractCount(line, "changed")
		stats.Unreachable += extractCount(line, "unreachable")
		stats.Failures += extractCount(line, "failed")
		stats.Skipped += extractCount(line, "skipped")
	}
	return stats
}

func extractCount(line, field string) int {
	pattern := regexp.MustCompile(field + `=(\d+)`)
	m := pattern.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0
	}
	val, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return val
}
