package events

import (
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotation matches spec.md §4.6: 10 MiB per file, 5 backups kept.
const (
	maxSizeMB  = 10
	maxBackups = 5
)

// NewFileSink builds a rotating-file subscriber that formats events through
// logrus's JSON formatter, matching the ambient logging stack used
// throughout the rest of the module.
func NewFileSink(name, dir, filename string, filter func(Event) bool) (*Subscriber, error) {
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(dir, filename),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   false,
	}

	logger := logrus.New()
	logger.SetOutput(writer)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	logger.SetLevel(logrus.DebugLevel)

	deliver := func(ev Event) {
		entry := logger.WithFields(logrus.Fields{
			"type":     ev.Type,
			"host":     ev.Host,
			"task_id":  ev.TaskID,
			"package":  ev.Package,
			"version":  ev.Version,
			"progress": ev.Progress,
		})
		if ev.Type == Overflow {
			entry.Warnf("event bus overflow: dropped=%d", ev.Dropped)
			return
		}
		msg := ev.Message
		if msg == "" {
			msg = ev.Line
		}
		if msg == "" {
			msg = string(ev.Type)
		}
		switch ev.Level {
		case LevelError:
			entry.Error(msg)
		case LevelWarn:
			entry.Warn(msg)
		case LevelDebug:
			entry.Debug(msg)
		default:
			entry.Info(msg)
		}
	}

	return NewSubscriber(name, DefaultQueueSize, filter, deliver), nil
}

// NewReplaySink writes every event as a single JSON line to w, giving the
// caller a replayable per-host record (data_dir/run/<ts>/<host>/events.jsonl).
func NewReplaySink(name string, w io.Writer, filter func(Event) bool) *Subscriber {
	enc := json.NewEncoder(w)
	deliver := func(ev Event) {
		// A broken replay file must never take down a worker; encode errors
		// are dropped rather than surfaced here.
		_ = enc.Encode(replayRecord{
			Type:     string(ev.Type),
			Time:     ev.Time,
			Host:     ev.Host,
			TaskID:   ev.TaskID,
			Package:  ev.Package,
			Version:  ev.Version,
			Progress: ev.Progress,
			Level:    string(ev.Level),
			Line:     ev.Line,
			Message:  ev.Message,
			Reason:   ev.Reason,
			Dropped:  ev.Dropped,
		})
	}
	return NewSubscriber(name, DefaultQueueSize, filter, deliver)
}

type replayRecord struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Host     string    `json:"host,omitempty"`
	TaskID   string    `json:"task_id,omitempty"`
	Package  string    `json:"package,omitempty"`
	Version  string    `json:"version,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Level    string    `json:"level,omitempty"`
	Line     string    `json:"line,omitempty"`
	Message  string    `json:"message,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Dropped  int       `json:"dropped,omitempty"`
}
