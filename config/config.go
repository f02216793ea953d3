// Package config loads agent settings from an optional config file and
// TRACE_AGENT_* environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "TRACE_AGENT"

// Config holds the agent settings that are not positional arguments.
type Config struct {
	// Foreground keeps the agent attached to its terminal and logging to stderr.
	Foreground bool
	// Journal is the path of the session journal; empty disables it.
	Journal string
	// Rules is a directory of Sigma rules checked on progress reports.
	Rules string
	// User is the account to switch to once source and sink are open.
	User string
	// LogLevel is a logrus level name.
	LogLevel logrus.Level
	// DigestKey keys the stream digest.
	DigestKey []byte
}

// Defaults are the values used when neither a config file nor the
// environment sets a key.
type Defaults struct {
	Foreground bool
	Journal    string
	Rules      string
	User       string
	LogLevel   string
	DigestKey  string
}

// Load merges defaults, the config file at path (if not empty), the
// environment and explicit overrides, in increasing order of precedence.
// Override keys are the config keys, e.g. "log_level".
func Load(path string, d Defaults, overrides map[string]string) (*Config, error) {
	v := viper.New()
	v.SetDefault("foreground", d.Foreground)
	v.SetDefault("journal", d.Journal)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("user", d.User)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("digest_key", d.DigestKey)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	level, err := logrus.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return nil, err
	}

	key := make([]byte, 32)
	if s := v.GetString("digest_key"); s != "" {
		key, err = hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid digest key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("invalid digest key: want 32 bytes, got %d", len(key))
		}
	}

	return &Config{
		Foreground: v.GetBool("foreground"),
		Journal:    v.GetString("journal"),
		Rules:      v.GetString("rules"),
		User:       v.GetString("user"),
		LogLevel:   level,
		DigestKey:  key,
	}, nil
}
