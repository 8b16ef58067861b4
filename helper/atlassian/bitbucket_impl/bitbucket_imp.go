package bitbucket_impl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pr_panel/helper/atlassian"
	"pr_panel/log"
	"pr_panel/model"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// Servers older than this only answer the inbox under rest/api/1.0.
var legacyInboxBefore = semver.MustParse("4.4.0")

const maxErrorBody = 512

// CheckAppVersion asks the server for its version and remembers it so the
// inbox endpoint matching that version is used.
func (hc *HttpClient) CheckAppVersion(ctx context.Context) (model.AppVersion, error) {
	var version model.AppVersion
	endpoint, err := hc.endpoint(nil, "rest", "api", "1.0", "application-properties")
	if err != nil {
		return version, err
	}
	if err := hc.send(ctx, http.MethodGet, endpoint, nil, &version); err != nil {
		hc.reportFailure(ctx, err)
		return version, err
	}

	parsed, err := semver.NewVersion(version.Version)
	if err != nil {
		log.Warnf("Cannot parse Bitbucket version %q, assuming a recent server: %v", version.Version, err)
		return version, nil
	}
	hc.mu.Lock()
	hc.appVersion = parsed
	hc.mu.Unlock()
	log.Infof("Connected to %s %s (build %s)", version.DisplayName, version.Version, version.BuildNumber)
	return version, nil
}

func (hc *HttpClient) ReviewedPRs(ctx context.Context) ([]model.PullRequest, error) {
	return hc.inbox(ctx, model.RoleReviewer)
}

func (hc *HttpClient) OwnPRs(ctx context.Context) ([]model.PullRequest, error) {
	return hc.inbox(ctx, model.RoleAuthor)
}

// inbox walks every page of the inbox for one role.
func (hc *HttpClient) inbox(ctx context.Context, role model.Role) ([]model.PullRequest, error) {
	var all []model.PullRequest
	start := 0
	for {
		query := url.Values{}
		query.Set("role", string(role))
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(hc.settings.PageLimit))

		endpoint, err := hc.endpoint(query, hc.inboxPath()...)
		if err != nil {
			return nil, err
		}

		var page model.PagedResponse[model.PullRequest]
		if err := hc.send(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			hc.reportFailure(ctx, err)
			return nil, err
		}
		all = append(all, page.Values...)

		if page.IsLastPage || len(page.Values) == 0 || page.NextPageStart <= start {
			break
		}
		start = page.NextPageStart
	}

	filtered := hc.filterByProject(all)
	log.Debugf("Fetched %d %s pull requests (%d after project filter)", len(all), role, len(filtered))
	return filtered, nil
}

func (hc *HttpClient) inboxPath() []string {
	hc.mu.RLock()
	version := hc.appVersion
	hc.mu.RUnlock()
	if version != nil && version.LessThan(legacyInboxBefore) {
		return []string{"rest", "api", "1.0", "inbox", "pull-requests"}
	}
	return []string{"rest", "inbox", "latest", "pull-requests"}
}

func (hc *HttpClient) filterByProject(prs []model.PullRequest) []model.PullRequest {
	if hc.settings.Project == "" {
		return prs
	}
	slug := strings.ToLower(hc.settings.Slug)
	filtered := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if strings.EqualFold(pr.ProjectKey(), hc.settings.Project) &&
			strings.Contains(slug, strings.ToLower(pr.RepoSlug())) {
			filtered = append(filtered, pr)
		}
	}
	return filtered
}

// RetrieveMergeStatus failures are left to the caller; they are not reported
// to the listener as request failures.
func (hc *HttpClient) RetrieveMergeStatus(ctx context.Context, pr model.PullRequest) ([]model.MergeStatus, error) {
	endpoint, err := hc.pullRequestEndpoint(pr, nil, "merge")
	if err != nil {
		return nil, err
	}
	var status model.MergeStatus
	if err := hc.send(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return []model.MergeStatus{status}, nil
}

func (hc *HttpClient) Approve(ctx context.Context, pr model.PullRequest) error {
	endpoint, err := hc.pullRequestEndpoint(pr, nil, "participants", hc.settings.Login)
	if err != nil {
		return err
	}
	body := model.Participant{
		User:     model.User{Name: hc.settings.Login},
		Approved: true,
		Status:   "APPROVED",
	}
	if err := hc.send(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		hc.reportFailure(ctx, err)
		return err
	}
	log.Infof("Approved PR #%d in %s/%s", pr.ID, pr.ProjectKey(), pr.RepoSlug())
	return nil
}

func (hc *HttpClient) Decline(ctx context.Context, pr model.PullRequest) error {
	endpoint, err := hc.pullRequestEndpoint(pr, versionQuery(pr), "decline")
	if err != nil {
		return err
	}
	if err := hc.send(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		hc.reportFailure(ctx, err)
		return err
	}
	log.Infof("Declined PR #%d in %s/%s", pr.ID, pr.ProjectKey(), pr.RepoSlug())
	return nil
}

func (hc *HttpClient) Merge(ctx context.Context, pr model.PullRequest) (model.PullRequest, error) {
	endpoint, err := hc.pullRequestEndpoint(pr, versionQuery(pr), "merge")
	if err != nil {
		return pr, err
	}
	var merged model.PullRequest
	if err := hc.send(ctx, http.MethodPost, endpoint, nil, &merged); err != nil {
		hc.reportFailure(ctx, err)
		return pr, err
	}
	log.Infof("Merged PR #%d in %s/%s", pr.ID, pr.ProjectKey(), pr.RepoSlug())
	return merged, nil
}

func versionQuery(pr model.PullRequest) url.Values {
	query := url.Values{}
	query.Set("version", strconv.Itoa(pr.Version))
	return query
}

// reportFailure forwards everything except 401/403 to the listener; those two
// already produced their own callback in send. Requests abandoned by the
// caller are not failures.
func (hc *HttpClient) reportFailure(ctx context.Context, err error) {
	if atlassian.IsUnauthorized(err) || atlassian.IsForbidden(err) || ctx.Err() != nil {
		return
	}
	hc.listener.RequestFailed(err)
}

func (hc *HttpClient) pullRequestEndpoint(pr model.PullRequest, query url.Values, tail ...string) (string, error) {
	segments := []string{
		"rest", "api", "1.0", "projects", pr.ProjectKey(), "repos", pr.RepoSlug(),
		"pull-requests", strconv.Itoa(pr.ID),
	}
	return hc.endpoint(query, append(segments, tail...)...)
}

func (hc *HttpClient) endpoint(query url.Values, segments ...string) (string, error) {
	endpoint, err := url.JoinPath(hc.settings.URL, segments...)
	if err != nil {
		return "", errors.Wrapf(err, "build url from %q", hc.settings.URL)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint, nil
}

func (hc *HttpClient) send(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	if err := hc.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s %s: rate limiter", method, endpoint)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "build request %s %s", method, endpoint)
	}
	req.SetBasicAuth(hc.settings.Login, hc.settings.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Atlassian-Token", "no-check")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("%s %s", method, endpoint)
	resp, err := hc.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(err, "%s %s", method, endpoint)
		}
		return errors.Mark(errors.Wrapf(err, "%s %s", method, endpoint), atlassian.ErrTransport)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(err, "read body of %s %s", method, endpoint)
		}
		return errors.Mark(errors.Wrapf(err, "read body of %s %s", method, endpoint), atlassian.ErrTransport)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		hc.listener.InvalidCredentials()
		return errors.Wrapf(atlassian.ErrUnauthorized, "%s %s", method, endpoint)
	case resp.StatusCode == http.StatusForbidden:
		hc.listener.ActionForbidden()
		return errors.Wrapf(atlassian.ErrForbidden, "%s %s", method, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		text := string(rawBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		log.Errorf("Error: Expected status 2xx but got %d from %s %s", resp.StatusCode, method, endpoint)
		return &atlassian.RequestError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: text}
	}

	if out == nil || len(rawBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return errors.Wrapf(err, "decode response of %s %s", method, endpoint)
	}
	return nil
}
