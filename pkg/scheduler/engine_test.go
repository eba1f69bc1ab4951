package scheduler

import (
	"context"
	"testing"
	"time"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/checker"
	"hostfleet/pkg/events"
	"hostfleet/pkg/installer"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// fakeInstaller lets each test script the outcome of every lifecycle phase
// without touching SSH or Ansible.
type fakeInstaller struct {
	name       string
	preCheck   func() (installer.StepResult, error)
	installErr error
	postErr    error
	verifyErr  error
}

func (f *fakeInstaller) Name() string { return f.name }

func (f *fakeInstaller) SupportsVersion(version string) bool { return true }

func (f *fakeInstaller) PreCheck(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (installer.StepResult, error) {
	if f.preCheck != nil {
		return f.preCheck()
	}
	return installer.StepResult{Status: "success"}, nil
}

func (f *fakeInstaller) Install(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, onEvent ansible.EventHandler) (installer.StepResult, error) {
	if f.installErr != nil {
		return installer.StepResult{}, f.installErr
	}
	return installer.StepResult{Status: "success"}, nil
}

func (f *fakeInstaller) PostConfig(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (installer.StepResult, error) {
	if f.postErr != nil {
		return installer.StepResult{}, f.postErr
	}
	return installer.StepResult{Status: "success"}, nil
}

func (f *fakeInstaller) Verify(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (installer.StepResult, error) {
	if f.verifyErr != nil {
		return installer.StepResult{}, f.verifyErr
	}
	return installer.StepResult{Status: "success"}, nil
}

func passingChecker(name string) checker.Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) checker.Result {
		return checker.Result{Name: name, Level: checker.LevelInfo, Passed: true}
	}
}

func failingChecker(name string) checker.Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) checker.Result {
		return checker.Result{Name: name, Level: checker.LevelError, Passed: false, Message: "boom"}
	}
}

func newTestEngine(t *testing.T, hosts []task.HostSpec, packages map[string][]task.PackageSpec, checks []checker.Checker, installers *installer.Registry) (*Engine, *task.Catalog) {
	t.Helper()
	bus := events.NewBus(nil)
	runCtx := task.NewRunContext(context.Background(), "test-run", t.TempDir(), 2, false, bus)
	catalog := task.Build(hosts, packages)
	mgr := checker.NewManager(checks...)
	pool := sshexec.NewPool(time.Second)
	return New(runCtx, catalog, hosts, packages, mgr, installers, pool), catalog
}

func TestEngineHappyPath(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {{Name: "java", Version: "17"}},
	}
	reg := installer.NewRegistry(&fakeInstaller{name: "java"})
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Completed != 1 || stats.Failed != 0 {
		t.Fatalf("expected 1 completed task, got %+v", stats)
	}
}

func TestEngineCheckFailureFailsFastWithinHost(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {
			{Name: "java", Version: "17"},
			{Name: "python", Version: "3.11"},
		},
	}
	reg := installer.NewRegistry(&fakeInstaller{name: "java"}, &fakeInstaller{name: "python"})
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{failingChecker("connectivity")}, reg)

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("expected first task failed and second skipped, got %+v", stats)
	}
}

func TestEngineInstallErrorFails(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {{Name: "java", Version: "17"}},
	}
	reg := installer.NewRegistry(&fakeInstaller{name: "java", installErr: newError(KindInstall, "node1", "java", "simulated failure", nil)})
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failed task, got %+v", stats)
	}
}

func TestEngineUnknownInstallerFailsTaskNotRun(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {{Name: "unknown-pkg", Version: "1"}},
	}
	reg := installer.NewRegistry()
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failed task for unresolved installer, got %+v", stats)
	}
}

func TestEnginePreCheckSkipSkipsTaskWithoutFailingHost(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {
			{Name: "java", Version: "17"},
			{Name: "python", Version: "3.11"},
		},
	}
	skipJava := &fakeInstaller{
		name: "java",
		preCheck: func() (installer.StepResult, error) {
			return installer.StepResult{Status: "skipped", Message: "already installed"}, nil
		},
	}
	reg := installer.NewRegistry(skipJava, &fakeInstaller{name: "python"})
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Skipped != 1 || stats.Completed != 1 {
		t.Fatalf("expected the skipped installer's task skipped and the other completed, got %+v", stats)
	}
}

func TestEngineCancelMidInstallFailsTaskWithCancelledReason(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {{Name: "java", Version: "17"}},
	}

	var engineRef *Engine
	fake := &fakeInstaller{
		name: "java",
		preCheck: func() (installer.StepResult, error) {
			// Simulate a cancel arriving while PreCheck is in flight: by the
			// time runTask checks again before Install, it must see it.
			engineRef.Cancel()
			return installer.StepResult{Status: "success"}, nil
		},
	}
	reg := installer.NewRegistry(fake)
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)
	engineRef = e

	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected the in-flight task to fail on cancel, got %+v", stats)
	}
	tasks := catalog.ByHost("node1")
	if len(tasks) != 1 || tasks[0].ErrorMessage != "cancelled" {
		t.Fatalf("expected ErrorMessage %q, got %+v", "cancelled", tasks)
	}
}

func TestEngineCancelSkipsQueuedTasks(t *testing.T) {
	hosts := []task.HostSpec{{Name: "node1", Host: "10.0.0.1"}}
	packages := map[string][]task.PackageSpec{
		"node1": {
			{Name: "java", Version: "17"},
			{Name: "python", Version: "3.11"},
		},
	}
	reg := installer.NewRegistry(&fakeInstaller{name: "java"}, &fakeInstaller{name: "python"})
	e, catalog := newTestEngine(t, hosts, packages, []checker.Checker{passingChecker("connectivity")}, reg)

	e.Cancel()
	e.Start()
	e.Wait()

	stats := catalog.Stats()
	if stats.Skipped != 2 {
		t.Fatalf("expected both tasks skipped after cancel, got %+v", stats)
	}
}
