// Package logging sets up the agent logger. A detached agent has no terminal,
// so everything goes to syslog; in the foreground logs also go to stderr.
package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// New returns a logger for the given tag. When the system log is not
// reachable, a foreground logger falls back to stderr alone, while a
// detached one fails.
func New(tag string, level logrus.Level, foreground bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: !foreground, FullTimestamp: true})
	if foreground {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}

	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		if !foreground {
			return nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		logger.Warnf("failed to connect to syslog, logging to stderr only: %v", err)
		return logger, nil
	}
	logger.AddHook(hook)
	return logger, nil
}
