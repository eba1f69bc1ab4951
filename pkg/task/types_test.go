package task

import "testing"

func TestTaskLifecycleHappyPath(t *testing.T) {
	tk := NewTask("db1", "java", "17")
	if tk.ID != "db1_java_17" {
		t.Fatalf("unexpected ID: %s", tk.ID)
	}
	if tk.Status != StatusPending {
		t.Fatalf("new task should be pending, got %s", tk.Status)
	}

	tk.Start()
	if tk.Status != StatusRunning {
		t.Fatalf("expected running, got %s", tk.Status)
	}
	if tk.StartedAt.IsZero() {
		t.Fatal("StartedAt should be set after Start")
	}

	tk.SetProgress(150)
	if tk.Progress != 100 {
		t.Fatalf("progress should clamp to 100, got %d", tk.Progress)
	}

	tk.Complete()
	if tk.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", tk.Status)
	}
	if !tk.Status.Terminal() {
		t.Fatal("completed should be terminal")
	}
	if tk.EndedAt.IsZero() {
		t.Fatal("EndedAt should be set after Complete")
	}
}

func TestTaskFail(t *testing.T) {
	tk := NewTask("db1", "python", "3.11")
	tk.Start()
	tk.Fail("connection reset")
	if tk.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", tk.Status)
	}
	if tk.ErrorMessage != "connection reset" {
		t.Fatalf("unexpected error message: %s", tk.ErrorMessage)
	}
}

func TestTaskSkip(t *testing.T) {
	tk := NewTask("db1", "zookeeper", "3.9")
	tk.Skip("earlier task on host failed")
	if tk.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", tk.Status)
	}
	if !tk.Status.Terminal() {
		t.Fatal("skipped should be terminal")
	}
}

func TestSkipFromRunning(t *testing.T) {
	tk := NewTask("db1", "java", "17")
	tk.Start()
	tk.Skip("already installed")
	if tk.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", tk.Status)
	}
}

func TestSkipFromCompletedPanics(t *testing.T) {
	tk := NewTask("db1", "java", "17")
	tk.Start()
	tk.Complete()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic skipping a completed task")
		}
	}()
	tk.Skip("too late")
}

func TestStartOnNonPendingPanics(t *testing.T) {
	tk := NewTask("db1", "java", "17")
	tk.Start()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic starting an already-running task")
		}
	}()
	tk.Start()
}

func TestCatalogBuildAndStats(t *testing.T) {
	hosts := []HostSpec{{Name: "db1"}, {Name: "db2"}}
	packages := map[string][]PackageSpec{
		"db1": {{Name: "java", Version: "17"}, {Name: "zookeeper", Version: "3.9"}},
		"db2": {{Name: "java", Version: "17"}},
	}

	cat := Build(hosts, packages)
	if len(cat.All()) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(cat.All()))
	}

	db1Tasks := cat.ByHost("db1")
	if len(db1Tasks) != 2 {
		t.Fatalf("expected 2 tasks for db1, got %d", len(db1Tasks))
	}

	stats := cat.Stats()
	if stats.Total != 3 || stats.Pending != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	tk, ok := cat.Get("db1_java_17")
	if !ok {
		t.Fatal("expected to find db1_java_17")
	}
	tk.Start()
	tk.Complete()

	stats = cat.Stats()
	if stats.Completed != 1 || stats.Pending != 2 {
		t.Fatalf("unexpected stats after completing one task: %+v", stats)
	}

	if prog := cat.Progress(); prog <= 0 {
		t.Fatalf("expected nonzero mean progress, got %v", prog)
	}
}
