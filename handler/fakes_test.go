package handler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pr_panel/helper/atlassian"
	"pr_panel/model"
)

type fakeJob struct {
	task         func()
	initialDelay time.Duration
	period       time.Duration
	prevStopped  bool
	stops        atomic.Int32
}

// tick runs the task the way the executor would, unless the job was removed.
func (j *fakeJob) tick() bool {
	if j.stops.Load() > 0 {
		return false
	}
	j.task()
	return true
}

type fakeExecutor struct {
	mu   sync.Mutex
	jobs []*fakeJob
	err  error
}

func (e *fakeExecutor) Submit(task func(), initialDelay, period time.Duration) (CancelFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	job := &fakeJob{task: task, initialDelay: initialDelay, period: period, prevStopped: true}
	if n := len(e.jobs); n > 0 {
		job.prevStopped = e.jobs[n-1].stops.Load() > 0
	}
	e.jobs = append(e.jobs, job)
	return func() { job.stops.Add(1) }, nil
}

func (e *fakeExecutor) job(i int) *fakeJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobs[i]
}

func (e *fakeExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.jobs)
}

type fakeBitbucket struct {
	mu           sync.Mutex
	reviewed     func(ctx context.Context) ([]model.PullRequest, error)
	own          func(ctx context.Context) ([]model.PullRequest, error)
	mergeStatus  func(pr model.PullRequest) ([]model.MergeStatus, error)
	versionCalls int
	reviewCalls  int
	mergeCalls   []int
	approved     []int
	declined     []int
	actionErr    error
}

func (f *fakeBitbucket) CheckAppVersion(context.Context) (model.AppVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	return model.AppVersion{Version: "8.9.0"}, nil
}

func (f *fakeBitbucket) ReviewedPRs(ctx context.Context) ([]model.PullRequest, error) {
	f.mu.Lock()
	f.reviewCalls++
	fn := f.reviewed
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeBitbucket) OwnPRs(ctx context.Context) ([]model.PullRequest, error) {
	if f.own == nil {
		return nil, nil
	}
	return f.own(ctx)
}

func (f *fakeBitbucket) RetrieveMergeStatus(_ context.Context, pr model.PullRequest) ([]model.MergeStatus, error) {
	f.mu.Lock()
	f.mergeCalls = append(f.mergeCalls, pr.ID)
	f.mu.Unlock()
	if f.mergeStatus == nil {
		return []model.MergeStatus{{CanMerge: true}}, nil
	}
	return f.mergeStatus(pr)
}

func (f *fakeBitbucket) Approve(_ context.Context, pr model.PullRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, pr.ID)
	return f.actionErr
}

func (f *fakeBitbucket) Decline(_ context.Context, pr model.PullRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined = append(f.declined, pr.ID)
	return f.actionErr
}

func (f *fakeBitbucket) Merge(_ context.Context, pr model.PullRequest) (model.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return pr, f.actionErr
	}
	pr.State = "MERGED"
	return pr, nil
}

func (f *fakeBitbucket) reviewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reviewCalls
}

type recordingPanel struct {
	mu            sync.Mutex
	reviewing     [][]model.PullRequest
	own           [][]model.PullRequest
	notifications []model.Notification
}

func (p *recordingPanel) UpdateReviewingPRs(prs []model.PullRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reviewing = append(p.reviewing, prs)
}

func (p *recordingPanel) UpdateOwnPRs(prs []model.PullRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.own = append(p.own, prs)
}

func (p *recordingPanel) ShowNotification(text string, severity model.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, model.Notification{Text: text, Severity: severity})
}

func (p *recordingPanel) snapshot() (reviewing, own [][]model.PullRequest, notes []model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(reviewing, p.reviewing...), append(own, p.own...), append(notes, p.notifications...)
}

// harness wires a holder to fakes and remembers the listener of every generation.
type harness struct {
	executor  *fakeExecutor
	panel     *recordingPanel
	client    *fakeBitbucket
	listeners []atlassian.ClientListener
	holder    *UpdateTaskHolder
	mu        sync.Mutex
}

func newHarness(client *fakeBitbucket) *harness {
	h := &harness{executor: &fakeExecutor{}, panel: &recordingPanel{}, client: client}
	h.holder = NewUpdateTaskHolder(context.Background(), h.executor, func(l atlassian.ClientListener) (atlassian.Bitbucket, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listeners = append(h.listeners, l)
		return h.client, nil
	}, h.panel, nil)
	return h
}

func (h *harness) listener(i int) *NotifyingClientListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listeners[i].(*NotifyingClientListener)
}

func ownPRs(n int) []model.PullRequest {
	prs := make([]model.PullRequest, n)
	for i := range prs {
		prs[i] = model.PullRequest{ID: i + 1, Title: fmt.Sprintf("PR %d", i+1)}
	}
	return prs
}
