package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/progress"

	"hostfleet/pkg/events"
	"hostfleet/pkg/task"
)

// progressSubscriber renders one progress.Tracker per host, advancing it as
// task_complete/task_failed/task_skipped events arrive.
type progressSubscriber struct {
	pw       progress.Writer
	trackers map[string]*progress.Tracker
	sub      *events.Subscriber
}

func newProgressSubscriber(hosts []task.HostSpec, packages map[string][]task.PackageSpec) *progressSubscriber {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stdout)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Percentage = true

	trackers := make(map[string]*progress.Tracker, len(hosts))
	for _, h := range hosts {
		tracker := &progress.Tracker{
			Message: h.Name,
			Total:   int64(len(packages[h.Name])),
		}
		trackers[h.Name] = tracker
		pw.AppendTracker(tracker)
	}

	go pw.Render()

	p := &progressSubscriber{pw: pw, trackers: trackers}
	p.sub = events.NewSubscriber("tui-progress", events.DefaultQueueSize, events.AllEvents, p.deliver)
	return p
}

func (p *progressSubscriber) subscriber() *events.Subscriber { return p.sub }

func (p *progressSubscriber) deliver(ev events.Event) {
	tracker, ok := p.trackers[ev.Host]
	if !ok {
		return
	}
	switch ev.Type {
	case events.TaskComplete:
		tracker.Increment(1)
	case events.TaskSkipped:
		tracker.Increment(1)
	case events.TaskFailed:
		tracker.IncrementWithError(1)
	}
}

func (p *progressSubscriber) stop() {
	for _, tracker := range p.trackers {
		if !tracker.IsDone() {
			tracker.MarkAsDone()
		}
	}
	p.pw.Stop()
	fmt.Fprintln(os.Stdout)
}
