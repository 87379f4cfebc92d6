package sealevel

import (
	"k8s.io/klog/v2"
)

type Logger interface {
	Log(s string)
}

// LogRecorder keeps every program log line emitted during execution.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	klog.V(2).Infof("program log: %s", s)
	r.Logs = append(r.Logs, s)
}

func (r *LogRecorder) Reset() {
	r.Logs = r.Logs[:0]
}
