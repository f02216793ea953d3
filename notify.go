package main

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
)

func notifyReady(log logrus.FieldLogger) {
	sdNotify(log, daemon.SdNotifyReady)
}

func notifyStopping(log logrus.FieldLogger) {
	sdNotify(log, daemon.SdNotifyStopping)
}

// sdNotify tells systemd about a state change. Without NOTIFY_SOCKET it does
// nothing.
func sdNotify(log logrus.FieldLogger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warnf("failed to notify systemd: %v", err)
		return
	}
	if sent {
		log.Debugf("notified systemd: %s", state)
	}
}
