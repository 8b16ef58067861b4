package model

import "time"

type Config struct {
	Bitbucket BitbucketSettings `yaml:"bitbucket"`
	Server    ServerSettings    `yaml:"server"`
	Git       GitSettings       `yaml:"git"`
	Telegram  TelegramSettings  `yaml:"telegram"`
}

type BitbucketSettings struct {
	URL      string `yaml:"url"`      // e.g. https://bitbucket.example.com/
	Login    string `yaml:"login"`    // also used as the participant slug when approving
	Password string `yaml:"password"` // overridden by BITBUCKET_PASSWORD
	Project  string `yaml:"project"`  // project key; empty disables the project filter
	Slug     string `yaml:"slug"`
	// Client-side throttling of REST calls.
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	PageLimit         int           `yaml:"pageLimit,omitempty"`
}

type ServerSettings struct {
	Addr string `yaml:"addr,omitempty"`
}

type GitSettings struct {
	RepoPath   string `yaml:"repoPath,omitempty"`
	RemoteName string `yaml:"remoteName,omitempty"`
}

type TelegramSettings struct {
	Token  string `yaml:"token,omitempty"` // overridden by TELEGRAM_TOKEN
	ChatID int64  `yaml:"chatId,omitempty"`
	// Notifications below this severity are not forwarded.
	MinSeverity Severity `yaml:"minSeverity,omitempty"`
}
