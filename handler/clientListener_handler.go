package handler

import (
	"sync/atomic"

	"pr_panel/helper/metrics"
	"pr_panel/log"
	"pr_panel/model"
)

// NotifyingClientListener turns client failures into notifications and, after
// too many failed requests, cancels the task it belongs to. One listener lives
// exactly as long as one task, so its counter starts over with every new task.
// The task cancelled is always the listener's own generation, not whatever the
// holder has installed by then; a late failure from a superseded client only
// cancels its already superseded task. While the task is current the two are
// the same job.
type NotifyingClientListener struct {
	panel        Panel
	metrics      *metrics.Metrics
	errorCounter atomic.Int32
	tripped      atomic.Bool
	task         atomic.Pointer[UpdateTask]
}

func newNotifyingClientListener(panel Panel, m *metrics.Metrics) *NotifyingClientListener {
	return &NotifyingClientListener{panel: panel, metrics: m}
}

func (l *NotifyingClientListener) attach(task *UpdateTask) {
	l.task.Store(task)
}

func (l *NotifyingClientListener) Failures() int {
	return int(l.errorCounter.Load())
}

func (l *NotifyingClientListener) InvalidCredentials() {
	l.metrics.RequestFailed("invalid_credentials")
	l.panel.ShowNotification("Invalid Bitbucket credentials!\n"+
		"Or it could be required to enter captcha in the web-interface.", model.SeverityWarning)
}

func (l *NotifyingClientListener) ActionForbidden() {
	l.metrics.RequestFailed("forbidden")
	l.panel.ShowNotification("Action you are trying to perform is forbidden by Bitbucket", model.SeverityWarning)
}

func (l *NotifyingClientListener) RequestFailed(err error) {
	log.Errorf("Request failed: %v", err)
	l.metrics.RequestFailed("generic")
	l.panel.ShowNotification("Request to Bitbucket failed, it may be unreachable or the settings are incorrect",
		model.SeverityWarning)

	if l.errorCounter.Add(1) <= MaxRequestFailures {
		return
	}
	task := l.task.Load()
	if task == nil || !l.tripped.CompareAndSwap(false, true) {
		return
	}
	task.Cancel("too many failed requests")
	log.Warn("Update task is cancelled due to the high request error rate")
}
