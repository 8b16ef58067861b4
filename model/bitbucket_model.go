package model

import "strings"

// Role of the current user in a pull request, as understood by the inbox endpoint.
type Role string

const (
	RoleReviewer Role = "REVIEWER"
	RoleAuthor   Role = "AUTHOR"
)

// PullRequest mirrors the Bitbucket Server pull request resource.
type PullRequest struct {
	ID           int           `json:"id"`
	Version      int           `json:"version"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	State        string        `json:"state"`
	Open         bool          `json:"open"`
	Closed       bool          `json:"closed"`
	CreatedDate  int64         `json:"createdDate"`
	UpdatedDate  int64         `json:"updatedDate"`
	FromRef      Ref           `json:"fromRef"`
	ToRef        Ref           `json:"toRef"`
	Author       Participant   `json:"author"`
	Reviewers    []Participant `json:"reviewers,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	Links        Links         `json:"links"`

	// MergeStatus is filled locally for authored pull requests; empty means not enriched.
	MergeStatus []MergeStatus `json:"mergeStatus,omitempty"`
}

func (pr PullRequest) ProjectKey() string { return pr.ToRef.Repository.Project.Key }

func (pr PullRequest) RepoSlug() string { return pr.ToRef.Repository.Slug }

// SelfHref is the browser link of the pull request.
func (pr PullRequest) SelfHref() string {
	if len(pr.Links.Self) == 0 {
		return ""
	}
	return pr.Links.Self[0].Href
}

// CanMerge reports whether the enrichment says the pull request can be merged.
func (pr PullRequest) CanMerge() bool {
	if len(pr.MergeStatus) == 0 {
		return false
	}
	for _, status := range pr.MergeStatus {
		if !status.CanMerge {
			return false
		}
	}
	return true
}

type Ref struct {
	ID           string     `json:"id"`
	DisplayID    string     `json:"displayId"`
	LatestCommit string     `json:"latestCommit,omitempty"`
	Repository   Repository `json:"repository"`
}

type Repository struct {
	Slug    string  `json:"slug"`
	Name    string  `json:"name,omitempty"`
	Project Project `json:"project"`
}

type Project struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

type Participant struct {
	User     User   `json:"user"`
	Role     string `json:"role,omitempty"`
	Approved bool   `json:"approved"`
	Status   string `json:"status,omitempty"`
}

type User struct {
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Slug         string `json:"slug,omitempty"`
	Links        Links  `json:"links,omitempty"`
}

type Links struct {
	Self []Link `json:"self,omitempty"`
}

type Link struct {
	Href string `json:"href"`
}

// MergeStatus is the answer of the merge endpoint for one pull request.
type MergeStatus struct {
	CanMerge   bool   `json:"canMerge"`
	Conflicted bool   `json:"conflicted"`
	Outcome    string `json:"outcome,omitempty"`
	Vetoes     []Veto `json:"vetoes,omitempty"`
}

type Veto struct {
	SummaryMessage  string `json:"summaryMessage"`
	DetailedMessage string `json:"detailedMessage"`
}

// VetoesSummary joins the veto summaries, one per line.
func (m MergeStatus) VetoesSummary() string {
	summaries := make([]string, 0, len(m.Vetoes))
	for _, veto := range m.Vetoes {
		summaries = append(summaries, veto.SummaryMessage)
	}
	return strings.Join(summaries, "\n")
}

// AppVersion is returned by the application-properties endpoint.
type AppVersion struct {
	Version     string `json:"version"`
	BuildNumber string `json:"buildNumber"`
	BuildDate   string `json:"buildDate"`
	DisplayName string `json:"displayName"`
}

// PagedResponse is the envelope Bitbucket Server uses for every list endpoint.
type PagedResponse[T any] struct {
	Size          int  `json:"size"`
	Limit         int  `json:"limit"`
	IsLastPage    bool `json:"isLastPage"`
	Start         int  `json:"start"`
	NextPageStart int  `json:"nextPageStart"`
	Values        []T  `json:"values"`
}
