package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"DEBUG":   logrus.DebugLevel,
		"debug":   logrus.DebugLevel,
		" warn ":  logrus.WarnLevel,
		"WARNING": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"trace":   logrus.TraceLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for value, want := range cases {
		t.Setenv("PR_PANEL_TEST_LEVEL", value)
		assert.Equal(t, want, GetLogLevel("PR_PANEL_TEST_LEVEL"), "value %q", value)
	}
}

func TestWithFields(t *testing.T) {
	entry := WithFields(logrus.Fields{"job": "abc"})
	assert.Equal(t, "abc", entry.Data["job"])
	assert.Same(t, Logger(), entry.Logger)
}
