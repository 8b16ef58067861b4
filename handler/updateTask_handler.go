package handler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pr_panel/helper/atlassian"
	"pr_panel/helper/metrics"
	"pr_panel/log"
	"pr_panel/model"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	UpdatePeriod = 15 * time.Second
	// MergeStatusLimit caps merge status lookups per run for users with many open pull requests.
	MergeStatusLimit = 20
	// MaxRequestFailures is how many listener-reported failures a job survives.
	MaxRequestFailures = 5
)

var errCancelled = errors.New("update task cancelled")

// Panel is the UI-facing data model the update task publishes into.
type Panel interface {
	UpdateReviewingPRs(prs []model.PullRequest)
	UpdateOwnPRs(prs []model.PullRequest)
	ShowNotification(text string, severity model.Severity)
}

// ClientFactory builds a Bitbucket client from the current settings. Every
// failed request of that client is reported to listener.
type ClientFactory func(listener atlassian.ClientListener) (atlassian.Bitbucket, error)

type scheduleMode int

const (
	modeNew scheduleMode = iota
	modeReschedule
	modeRescheduleOrNew
)

// UpdateTaskHolder owns the single periodic update task. Replacing the task
// and cancelling it happen under one lock, so there is never more than one
// current task and a concurrent cancel sees the task installed last.
type UpdateTaskHolder struct {
	ctx       context.Context
	executor  Executor
	newClient ClientFactory
	panel     Panel
	metrics   *metrics.Metrics
	period    time.Duration

	mu   sync.Mutex
	task *UpdateTask
}

func NewUpdateTaskHolder(ctx context.Context, executor Executor, newClient ClientFactory, panel Panel, m *metrics.Metrics) *UpdateTaskHolder {
	return &UpdateTaskHolder{
		ctx:       ctx,
		executor:  executor,
		newClient: newClient,
		panel:     panel,
		metrics:   m,
		period:    UpdatePeriod,
	}
}

// StartNew replaces whatever is scheduled with a fresh task.
func (h *UpdateTaskHolder) StartNew() error {
	return h.createAndRun(modeNew)
}

// Reschedule replaces the current task with an equivalent one built from the
// current settings. Without a current task there is nothing to replace.
func (h *UpdateTaskHolder) Reschedule() error {
	return h.createAndRun(modeReschedule)
}

// RescheduleOrStart reschedules, or starts polling when nothing was ever scheduled.
func (h *UpdateTaskHolder) RescheduleOrStart() error {
	return h.createAndRun(modeRescheduleOrNew)
}

// Cancel stops the current task. It waits for an in-flight replace.
func (h *UpdateTaskHolder) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.task != nil {
		h.task.cancelLocked("stopped")
	}
}

// Current returns the installed task, cancelled or not, or nil before the first start.
func (h *UpdateTaskHolder) Current() *UpdateTask {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task
}

// Client returns the Bitbucket client of the current task.
func (h *UpdateTaskHolder) Client() atlassian.Bitbucket {
	if task := h.Current(); task != nil {
		return task.client
	}
	return nil
}

func (h *UpdateTaskHolder) createAndRun(mode scheduleMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if mode == modeReschedule && h.task == nil {
		log.Debug("No update task scheduled yet, nothing to reschedule")
		return nil
	}

	if h.task != nil {
		h.task.cancelLocked("replaced")
	}

	listener := newNotifyingClientListener(h.panel, h.metrics)
	client, err := h.newClient(listener)
	if err != nil {
		return fmt.Errorf("create bitbucket client: %w", err)
	}

	task := &UpdateTask{
		id:      uuid.NewString(),
		lock:    &h.mu,
		ctx:     h.ctx,
		client:  client,
		panel:   h.panel,
		metrics: h.metrics,
	}
	listener.attach(task)

	stop, err := h.executor.Submit(task.Run, 0, h.period)
	if err != nil {
		return fmt.Errorf("schedule update task: %w", err)
	}
	task.stop = stop
	h.task = task
	h.metrics.JobScheduled()
	log.Infof("Update task %s scheduled every %s", task.id, h.period)
	return nil
}

// UpdateTask is one generation of the periodic refresh. Once cancelled it
// never publishes again; a new task has to be created.
type UpdateTask struct {
	id      string
	lock    *sync.Mutex
	ctx     context.Context
	client  atlassian.Bitbucket
	panel   Panel
	metrics *metrics.Metrics

	versionOnce sync.Once
	cancelled   atomic.Bool
	stop        CancelFunc // guarded by lock
}

func (t *UpdateTask) ID() string { return t.id }

func (t *UpdateTask) Cancelled() bool { return t.cancelled.Load() }

// Cancel stops this task. Only the first call has an effect.
func (t *UpdateTask) Cancel(reason string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.cancelLocked(reason)
}

func (t *UpdateTask) cancelLocked(reason string) bool {
	if !t.cancelled.CompareAndSwap(false, true) {
		return false
	}
	if t.stop != nil {
		t.stop()
	}
	t.metrics.JobCancelled(reason)
	log.Infof("Update task %s cancelled: %s", t.id, reason)
	return true
}

// Run is one tick. Errors never leave it; they only decide whether the task
// keeps going.
func (t *UpdateTask) Run() {
	if t.Cancelled() {
		return
	}
	start := time.Now()
	outcome := "error"
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Update task %s panicked: %v", t.id, r)
			outcome = "error"
		}
		t.metrics.ObserveRun(outcome, time.Since(start).Seconds())
	}()

	log.Debugf("Running update task %s", t.id)
	outcome = t.handleError(t.update())
}

func (t *UpdateTask) update() error {
	t.versionOnce.Do(func() {
		if _, err := t.client.CheckAppVersion(t.ctx); err != nil {
			log.Warnf("Cannot read Bitbucket version, assuming a recent server: %v", err)
		}
	})

	if t.Cancelled() {
		return errCancelled
	}
	reviewing, err := t.client.ReviewedPRs(t.ctx)
	if err != nil {
		return err
	}
	if t.Cancelled() {
		return errCancelled
	}
	t.panel.UpdateReviewingPRs(reviewing)
	t.metrics.SetPullRequests("reviewing", len(reviewing))

	own, err := t.client.OwnPRs(t.ctx)
	if err != nil {
		return err
	}
	for i := 0; i < len(own) && i < MergeStatusLimit; i++ {
		if t.Cancelled() {
			return errCancelled
		}
		status, err := t.client.RetrieveMergeStatus(t.ctx, own[i])
		if err != nil {
			if atlassian.IsUnauthorized(err) {
				return err
			}
			log.Infof("Merge status of PR #%d unavailable: %v", own[i].ID, err)
			continue
		}
		own[i].MergeStatus = status
	}
	if t.Cancelled() {
		return errCancelled
	}
	t.panel.UpdateOwnPRs(own)
	t.metrics.SetPullRequests("own", len(own))
	return nil
}

func (t *UpdateTask) handleError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errCancelled), errors.Is(err, context.Canceled):
		log.Debugf("Update task %s was cancelled mid-run, results dropped", t.id)
		return "cancelled"
	case atlassian.IsUnauthorized(err):
		log.Warnf("Update task %s is not authorized, polling stopped: %v", t.id, err)
		t.Cancel("unauthorized")
		return "unauthorized"
	case atlassian.IsTransport(err):
		log.Warnf("Update task %s cannot reach Bitbucket: %v", t.id, err)
		t.panel.ShowNotification(fmt.Sprintf("Error while trying to connect to a remote host: %v\n"+
			"Either Bitbucket settings are invalid or the host is unreachable", err), model.SeverityWarning)
		return "transport"
	default:
		log.Warnf("Error while trying to execute update task %s: %v", t.id, err)
		return "error"
	}
}
