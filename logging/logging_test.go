package logging

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForegroundLogger(t *testing.T) {
	logger, err := New("trace-agent-test", logrus.DebugLevel, true)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Equal(t, os.Stderr, logger.Out)
}
