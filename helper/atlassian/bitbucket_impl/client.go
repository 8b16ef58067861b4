package bitbucket_impl

import (
	"net/http"
	"sync"

	"pr_panel/helper/atlassian"
	"pr_panel/model"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/time/rate"
)

type HttpClient struct {
	http     *http.Client
	settings model.BitbucketSettings
	listener atlassian.ClientListener
	limiter  *rate.Limiter

	mu         sync.RWMutex
	appVersion *semver.Version
}

// New returns a production client bound to one set of settings and one listener.
// You can swap the http.Client for a test server's client.
func New(httpClient *http.Client, settings model.BitbucketSettings, listener atlassian.ClientListener) atlassian.Bitbucket {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.Timeout}
	}
	if listener == nil {
		listener = atlassian.NopListener{}
	}

	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}
	if settings.PageLimit <= 0 {
		settings.PageLimit = 25
	}

	return &HttpClient{
		http:     httpClient,
		settings: settings,
		listener: listener,
		limiter:  rate.NewLimiter(limit, burst),
	}
}
