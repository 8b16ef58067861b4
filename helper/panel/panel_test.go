package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pr_panel/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu   sync.Mutex
	got  []model.Notification
	fail bool
}

func (s *fakeSink) Notify(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func testPR(id int, project, repo string) model.PullRequest {
	ref := model.Ref{Repository: model.Repository{Slug: repo, Project: model.Project{Key: project}}}
	return model.PullRequest{ID: id, ToRef: ref, FromRef: ref}
}

func TestModel_UpdateAndRead(t *testing.T) {
	m := New()
	assert.Empty(t, m.ReviewingPRs())
	assert.NotNil(t, m.OwnPRs())

	reviewing := []model.PullRequest{testPR(1, "PRJ", "api")}
	m.UpdateReviewingPRs(reviewing)
	m.UpdateOwnPRs([]model.PullRequest{testPR(2, "PRJ", "api"), testPR(3, "PRJ", "web")})

	reviewing[0].Title = "mutated after publish"
	assert.Equal(t, "", m.ReviewingPRs()[0].Title)
	assert.Len(t, m.OwnPRs(), 2)
	assert.False(t, m.UpdatedAt().IsZero())
}

func TestModel_FindPullRequest(t *testing.T) {
	m := New()
	m.UpdateReviewingPRs([]model.PullRequest{testPR(1, "PRJ", "api")})
	own := testPR(1, "PRJ", "api")
	own.MergeStatus = []model.MergeStatus{{CanMerge: true}}
	m.UpdateOwnPRs([]model.PullRequest{own})

	got, ok := m.FindPullRequest("prj", "API", 1)
	require.True(t, ok)
	assert.True(t, got.CanMerge())

	_, ok = m.FindPullRequest("PRJ", "api", 99)
	assert.False(t, ok)
}

func TestModel_NotificationsFanOut(t *testing.T) {
	ok := &fakeSink{}
	broken := &fakeSink{fail: true}
	m := New(ok, broken)

	m.ShowNotification("hello", model.SeverityWarning)
	m.Flush()

	notes := m.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "hello", notes[0].Text)
	assert.Equal(t, model.SeverityWarning, notes[0].Severity)

	ok.mu.Lock()
	assert.Len(t, ok.got, 1)
	ok.mu.Unlock()
	broken.mu.Lock()
	assert.Len(t, broken.got, 1)
	broken.mu.Unlock()
}

func TestModel_NotificationHistoryIsBounded(t *testing.T) {
	m := New()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	for i := 0; i < maxNotifications+15; i++ {
		m.ShowNotification(fmt.Sprintf("n%d", i), model.SeverityInfo)
	}
	notes := m.Notifications()
	require.Len(t, notes, maxNotifications)
	assert.Equal(t, "n15", notes[0].Text)
	assert.Equal(t, fmt.Sprintf("n%d", maxNotifications+14), notes[len(notes)-1].Text)
	assert.Equal(t, fixed, notes[0].Time)
}
