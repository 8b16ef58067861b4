package atlassian

import (
	"context"

	"pr_panel/model"
)

// Bitbucket exposes the Bitbucket Server operations the panel cares about.
// ctx lets the caller cancel / set timeouts.
type Bitbucket interface {
	CheckAppVersion(ctx context.Context) (model.AppVersion, error)
	// ReviewedPRs lists open pull requests where the user is a reviewer.
	ReviewedPRs(ctx context.Context) ([]model.PullRequest, error)
	// OwnPRs lists open pull requests authored by the user.
	OwnPRs(ctx context.Context) ([]model.PullRequest, error)
	RetrieveMergeStatus(ctx context.Context, pr model.PullRequest) ([]model.MergeStatus, error)
	Approve(ctx context.Context, pr model.PullRequest) error
	Decline(ctx context.Context, pr model.PullRequest) error
	Merge(ctx context.Context, pr model.PullRequest) (model.PullRequest, error)
}

// ClientListener is told about every failed request, independent of what the
// caller then does with the returned error.
type ClientListener interface {
	InvalidCredentials()
	ActionForbidden()
	RequestFailed(err error)
}

type NopListener struct{}

func (NopListener) InvalidCredentials()   {}
func (NopListener) ActionForbidden()      {}
func (NopListener) RequestFailed(_ error) {}
