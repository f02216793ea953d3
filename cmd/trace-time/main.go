// Command trace-time writes the current wall-clock time into the kernel
// trace stream as a raw marker, for correlating trace timestamps.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jnesss/trace-agent/logging"
	"github.com/jnesss/trace-agent/marker"
)

func main() {
	log, err := logging.New("trace-time", logrus.InfoLevel, true)
	if err != nil {
		os.Exit(1)
	}
	if err := marker.WriteFile(marker.Path); err != nil {
		log.Errorf("%v: %s", err, marker.Path)
		os.Exit(1)
	}
}
