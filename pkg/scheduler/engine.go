package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/checker"
	"hostfleet/pkg/events"
	"hostfleet/pkg/installer"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Engine drives every host's task pipeline under a bounded worker pool,
// publishing lifecycle events as it goes. One Engine serves exactly one run.
type Engine struct {
	runCtx     *task.RunContext
	catalog    *task.Catalog
	checkers   *checker.Manager
	installers *installer.Registry
	pool       *sshexec.Pool

	hostsByName    map[string]task.HostSpec
	packagesByName map[string]map[string]task.PackageSpec // host -> package name -> spec

	sem *semaphore.Weighted

	wg   sync.WaitGroup
	done chan struct{}
}

// New builds an Engine over the given catalog, using checkers and
// installers to drive each task and pool to reach every host over SSH.
func New(
	runCtx *task.RunContext,
	catalog *task.Catalog,
	hosts []task.HostSpec,
	packagesByHost map[string][]task.PackageSpec,
	checkers *checker.Manager,
	installers *installer.Registry,
	pool *sshexec.Pool,
) *Engine {
	hostsByName := make(map[string]task.HostSpec, len(hosts))
	packagesByName := make(map[string]map[string]task.PackageSpec, len(hosts))
	for _, h := range hosts {
		hostsByName[h.Name] = h
		byName := make(map[string]task.PackageSpec, len(packagesByHost[h.Name]))
		for _, pkg := range packagesByHost[h.Name] {
			byName[pkg.Name] = pkg
		}
		packagesByName[h.Name] = byName
	}

	weight := int64(runCtx.MaxConcurrentNodes)
	if weight <= 0 {
		weight = int64(len(hosts))
		if weight == 0 {
			weight = 1
		}
	}

	return &Engine{
		runCtx:         runCtx,
		catalog:        catalog,
		checkers:       checkers,
		installers:     installers,
		pool:           pool,
		hostsByName:    hostsByName,
		packagesByName: packagesByName,
		sem:            semaphore.NewWeighted(weight),
		done:           make(chan struct{}),
	}
}

// Start submits one worker per host to the bounded pool and returns
// immediately; call Wait to block until the run finishes.
func (e *Engine) Start() {
	e.runCtx.Bus.Publish(events.Event{Type: events.RunStart})

	hosts := e.catalog.Hosts()
	e.wg.Add(len(hosts))
	for _, host := range hosts {
		host := host
		go func() {
			defer e.wg.Done()
			if e.runCtx.Cancelled() {
				e.skipRemaining(host, "cancelled")
				return
			}
			if err := e.sem.Acquire(e.runCtx.Context(), 1); err != nil {
				e.skipRemaining(host, "cancelled before start")
				return
			}
			defer e.sem.Release(1)
			if e.runCtx.Cancelled() {
				e.skipRemaining(host, "cancelled")
				return
			}
			e.runHost(host)
		}()
	}

	go func() {
		e.wg.Wait()
		e.runCtx.Bus.Publish(events.Event{Type: events.RunComplete, Stats: e.statsMap()})
		close(e.done)
	}()
}

// Wait blocks until every host worker has finished.
func (e *Engine) Wait() {
	<-e.done
}

// Pause asks every worker to block at its next task boundary.
func (e *Engine) Pause() { e.runCtx.Pause() }

// Resume releases workers blocked by Pause.
func (e *Engine) Resume() { e.runCtx.Resume() }

// Cancel requests cooperative shutdown: the run context handed to every
// SSH/Ansible call is cancelled, an in-flight task is failed with reason
// "cancelled" at its next phase boundary, and queued tasks are marked Skipped.
func (e *Engine) Cancel() { e.runCtx.Cancel() }

func (e *Engine) statsMap() map[string]int {
	s := e.catalog.Stats()
	return map[string]int{
		"total":     s.Total,
		"completed": s.Completed,
		"failed":    s.Failed,
		"skipped":   s.Skipped,
	}
}

// runHost drives one host's tasks in order, isolating it from every other
// host: a panic here is recovered and turned into a failed/skipped tail,
// never propagated to the pool.
func (e *Engine) runHost(host string) {
	e.runCtx.Bus.Publish(events.Event{Type: events.HostStart, Host: host})

	tasks := e.catalog.ByHost(host)
	hostSpec, ok := e.hostsByName[host]
	if !ok {
		e.failAll(tasks, host, newError(KindConfig, host, "", "unknown host in catalog", nil))
		e.publishHostComplete(host)
		return
	}

	failed := false
	for i, t := range tasks {
		if failed {
			t.Skip("previous task failed")
			e.runCtx.Bus.Publish(events.Event{Type: events.TaskSkipped, Host: host, TaskID: t.ID, Reason: t.ErrorMessage})
			continue
		}

		if err := e.runCtx.WaitIfPaused(e.runCtx.Context()); err != nil {
			e.skipFromIndex(tasks, i, host, "cancelled")
			break
		}
		if e.runCtx.Cancelled() {
			e.skipFromIndex(tasks, i, host, "cancelled")
			break
		}

		if !e.runTask(host, hostSpec, t) {
			failed = true
		}
	}

	e.publishHostComplete(host)
}

func (e *Engine) publishHostComplete(host string) {
	tasks := e.catalog.ByHost(host)
	var completed, taskFailed, skipped int
	for _, t := range tasks {
		switch t.Status {
		case task.StatusCompleted:
			completed++
		case task.StatusFailed:
			taskFailed++
		case task.StatusSkipped:
			skipped++
		}
	}
	e.runCtx.Bus.Publish(events.Event{
		Type: events.HostComplete,
		Host: host,
		Stats: map[string]int{
			"completed": completed,
			"failed":    taskFailed,
			"skipped":   skipped,
		},
	})
}

// runTask drives a single task through checks, install, post-config, and
// verify. It returns false if the task failed, signalling the caller to
// fail-fast the rest of the host.
func (e *Engine) runTask(host string, hostSpec task.HostSpec, t *task.Task) bool {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			if t.Status == task.StatusRunning {
				t.Fail(msg)
			}
			e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: msg})
		}
	}()

	pkg, ok := e.packagesByName[host][t.Package]
	if !ok {
		t.Start()
		t.Fail("no package spec found for task")
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	t.Start()
	e.runCtx.Bus.Publish(events.Event{Type: events.TaskStart, Host: host, TaskID: t.ID, Package: pkg.Name, Version: pkg.Version})

	results := e.checkers.RunAll(e.runCtx.Context(), e.pool, hostSpec, pkg)
	for _, r := range results {
		e.runCtx.Bus.Publish(events.Event{
			Type:   events.CheckResult,
			Host:   host,
			TaskID: t.ID,
			Check: &events.CheckPayload{
				Name: r.Name, Level: string(r.Level), Passed: r.Passed, Message: r.Message, Details: r.Details,
			},
		})
	}
	if checker.HasErrors(results) {
		t.Fail(joinCheckFailures(results))
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	inst, err := e.installers.Resolve(pkg.Name)
	if err != nil {
		t.Fail(err.Error())
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	if !inst.SupportsVersion(pkg.Version) {
		msg := fmt.Sprintf("%s does not support version %q", inst.Name(), pkg.Version)
		t.Fail(msg)
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: msg})
		return false
	}

	pre, err := inst.PreCheck(e.runCtx.Context(), hostSpec, pkg)
	if err != nil {
		t.Fail(err.Error())
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}
	if pre.Status == "skipped" {
		t.Skip(pre.Message)
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskSkipped, Host: host, TaskID: t.ID, Reason: pre.Message})
		return true
	}

	if e.failIfCancelled(host, t) {
		return false
	}

	onEvent := func(ev ansible.TaskEvent) {
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskLog, Host: host, TaskID: t.ID, Level: events.LevelInfo, Line: ev.Message})
	}

	installCtx := e.runCtx.Context()
	if secs, err := strconv.Atoi(fmt.Sprintf("%v", pkg.Config["timeout_seconds"])); err == nil && secs > 0 {
		var cancelInstall context.CancelFunc
		installCtx, cancelInstall = context.WithTimeout(installCtx, time.Duration(secs)*time.Second)
		defer cancelInstall()
	}

	if _, err := inst.Install(installCtx, hostSpec, pkg, onEvent); err != nil {
		reason := err.Error()
		if errors.Is(installCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		t.Fail(reason)
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	if e.failIfCancelled(host, t) {
		return false
	}

	if _, err := inst.PostConfig(e.runCtx.Context(), hostSpec, pkg); err != nil {
		t.Fail(err.Error())
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	if e.failIfCancelled(host, t) {
		return false
	}

	if _, err := inst.Verify(e.runCtx.Context(), hostSpec, pkg); err != nil {
		t.Fail(err.Error())
		e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: t.ErrorMessage})
		return false
	}

	t.Complete()
	e.runCtx.Bus.Publish(events.Event{Type: events.TaskComplete, Host: host, TaskID: t.ID})
	return true
}

// failIfCancelled checks the run context between lifecycle phases so a
// cancel that lands mid-install fails the in-flight task with the same
// "cancelled" reason a queued task gets, rather than whatever raw error
// the next SSH/Ansible call happens to surface.
func (e *Engine) failIfCancelled(host string, t *task.Task) bool {
	ctxErr := e.runCtx.Context().Err()
	if ctxErr == nil {
		return false
	}
	cancelErr := cancelledError(host, t.ID, ctxErr)
	t.Fail(cancelErr.Msg)
	e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: cancelErr.Msg})
	return true
}

func joinCheckFailures(results []checker.Result) string {
	var msgs []string
	for _, r := range results {
		if r.Level == checker.LevelError && !r.Passed {
			msgs = append(msgs, r.Message)
		}
	}
	return "pre-installation checks failed: " + strings.Join(msgs, "; ")
}

func (e *Engine) skipFromIndex(tasks []*task.Task, from int, host, reason string) {
	for _, t := range tasks[from:] {
		if t.Status == task.StatusPending {
			t.Skip(reason)
			e.runCtx.Bus.Publish(events.Event{Type: events.TaskSkipped, Host: host, TaskID: t.ID, Reason: reason})
		}
	}
}

func (e *Engine) skipRemaining(host, reason string) {
	e.skipFromIndex(e.catalog.ByHost(host), 0, host, reason)
	e.publishHostComplete(host)
}

func (e *Engine) failAll(tasks []*task.Task, host string, err error) {
	for _, t := range tasks {
		if t.Status == task.StatusPending {
			t.Start()
		}
		if t.Status == task.StatusRunning {
			t.Fail(err.Error())
			e.runCtx.Bus.Publish(events.Event{Type: events.TaskFailed, Host: host, TaskID: t.ID, Message: err.Error()})
		}
	}
}
