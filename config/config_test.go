package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", Defaults{LogLevel: "info", Journal: "/var/lib/trace-agent/journal.db"}, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Foreground)
	assert.Equal(t, "/var/lib/trace-agent/journal.db", cfg.Journal)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, make([]byte, 32), cfg.DigestKey)
}

func TestConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("foreground: true\nlog_level: debug\nrules: /etc/trace-agent/rules\n"), 0o644))
	t.Setenv("TRACE_AGENT_RULES", "/srv/rules")
	t.Setenv("TRACE_AGENT_DIGEST_KEY", strings.Repeat("ab", 32))

	cfg, err := Load(path, Defaults{LogLevel: "info"}, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Foreground)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "/srv/rules", cfg.Rules)
	assert.Len(t, cfg.DigestKey, 32)
	assert.Equal(t, byte(0xab), cfg.DigestKey[0])
}

func TestInvalidValues(t *testing.T) {
	_, err := Load("", Defaults{LogLevel: "loud"}, nil)
	assert.Error(t, err)

	_, err = Load("", Defaults{LogLevel: "info", DigestKey: "abcd"}, nil)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), Defaults{LogLevel: "info"}, nil)
	assert.Error(t, err)
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("TRACE_AGENT_LOG_LEVEL", "warn")
	t.Setenv("TRACE_AGENT_FOREGROUND", "false")

	cfg, err := Load("", Defaults{LogLevel: "info"}, map[string]string{
		"log_level":  "error",
		"foreground": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, cfg.LogLevel)
	assert.True(t, cfg.Foreground)
}
