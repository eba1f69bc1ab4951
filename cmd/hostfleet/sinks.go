package main

import (
	"os"
	"path/filepath"

	"hostfleet/pkg/events"
)

// attachSinks wires the run's persisted-state layout onto bus: a rotating
// main deploy log, one rotating log plus one replayable events.jsonl and
// stdout.log per host. It returns close funcs that unregister those
// subscribers and close the raw file handles it opened directly.
func attachSinks(bus *events.Bus, logDir, runDir string, hosts []string) ([]func(), error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	var closers []func()

	mainSink, err := events.NewFileSink("deploy-log", logDir, "deploy.log", events.AllEvents)
	if err != nil {
		return nil, err
	}
	bus.Subscribe(mainSink)
	closers = append(closers, func() { bus.Unsubscribe("deploy-log") })

	for _, host := range hosts {
		hostDir := filepath.Join(runDir, host)
		if err := os.MkdirAll(hostDir, 0o755); err != nil {
			closeAll(closers)
			return nil, err
		}

		hostLogSink, err := events.NewFileSink("log-"+host, logDir, host+".log", events.ForHost(host))
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		bus.Subscribe(hostLogSink)
		logName := "log-" + host
		closers = append(closers, func() { bus.Unsubscribe(logName) })

		stdoutFile, err := os.Create(filepath.Join(hostDir, "stdout.log"))
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		stdoutSink := events.NewSubscriber("stdout-"+host, events.DefaultQueueSize, events.ForHost(host), func(ev events.Event) {
			if ev.Type == events.TaskLog && ev.Line != "" {
				stdoutFile.WriteString(ev.Line + "\n")
			}
		})
		bus.Subscribe(stdoutSink)
		name := "stdout-" + host
		closers = append(closers, func() { bus.Unsubscribe(name); stdoutFile.Close() })

		replayFile, err := os.Create(filepath.Join(hostDir, "events.jsonl"))
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		replaySink := events.NewReplaySink("replay-"+host, replayFile, events.ForHost(host))
		bus.Subscribe(replaySink)
		replayName := "replay-" + host
		closers = append(closers, func() { bus.Unsubscribe(replayName); replayFile.Close() })
	}

	return closers, nil
}
