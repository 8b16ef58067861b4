// Package panel holds the pull request lists and notifications shown to the user.
// The refresh job writes into it, the HTTP handlers read from it.
package panel

import (
	"context"
	"strings"
	"sync"
	"time"

	"pr_panel/log"
	"pr_panel/model"
)

const (
	maxNotifications = 100
	sinkTimeout      = 10 * time.Second
)

// Notifier forwards a notification somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type Model struct {
	mu            sync.RWMutex
	reviewing     []model.PullRequest
	own           []model.PullRequest
	notifications []model.Notification
	updatedAt     time.Time

	sinks []Notifier
	now   func() time.Time
	wg    sync.WaitGroup
}

func New(sinks ...Notifier) *Model {
	return &Model{sinks: sinks, now: time.Now}
}

func (m *Model) UpdateReviewingPRs(prs []model.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewing = clonePRs(prs)
	m.updatedAt = m.now()
}

func (m *Model) UpdateOwnPRs(prs []model.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.own = clonePRs(prs)
	m.updatedAt = m.now()
}

// ShowNotification logs the text at the matching level, keeps it in the
// notification history and hands it to every sink in the background.
func (m *Model) ShowNotification(text string, severity model.Severity) {
	n := model.Notification{Text: text, Severity: severity, Time: m.now()}

	switch severity {
	case model.SeverityError:
		log.Error(text)
	case model.SeverityWarning:
		log.Warn(text)
	default:
		log.Info(text)
	}

	m.mu.Lock()
	m.notifications = append(m.notifications, n)
	if over := len(m.notifications) - maxNotifications; over > 0 {
		m.notifications = append([]model.Notification(nil), m.notifications[over:]...)
	}
	m.mu.Unlock()

	for _, sink := range m.sinks {
		m.wg.Add(1)
		go func(sink Notifier) {
			defer m.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := sink.Notify(ctx, n); err != nil {
				log.Errorf("Failed to forward notification: %v", err)
			}
		}(sink)
	}
}

// Flush waits for notifications still being delivered to sinks.
func (m *Model) Flush() {
	m.wg.Wait()
}

func (m *Model) ReviewingPRs() []model.PullRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePRs(m.reviewing)
}

func (m *Model) OwnPRs() []model.PullRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePRs(m.own)
}

func (m *Model) Notifications() []model.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Notification(nil), m.notifications...)
}

func (m *Model) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// FindPullRequest looks a pull request up in both lists. Own pull requests win
// because they carry merge status.
func (m *Model) FindPullRequest(project, repo string, id int) (model.PullRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, list := range [][]model.PullRequest{m.own, m.reviewing} {
		for _, pr := range list {
			if pr.ID == id && strings.EqualFold(pr.ProjectKey(), project) && strings.EqualFold(pr.RepoSlug(), repo) {
				return pr, true
			}
		}
	}
	return model.PullRequest{}, false
}

func clonePRs(prs []model.PullRequest) []model.PullRequest {
	if prs == nil {
		return []model.PullRequest{}
	}
	return append([]model.PullRequest(nil), prs...)
}
