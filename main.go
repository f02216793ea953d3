// Command trace-agent drains a raw kernel trace ring buffer file and forwards
// it page by page, unmodified, to a local file or to host:port over TCP.
//
// The agent detaches from its terminal and reports only through syslog.
// SIGINT or SIGTERM stops it at the next page boundary, SIGIO logs a progress
// report and SIGURG logs the pending socket error of a network destination.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/jnesss/trace-agent/config"
	"github.com/jnesss/trace-agent/database"
	"github.com/jnesss/trace-agent/logging"
	"github.com/jnesss/trace-agent/pump"
	"github.com/jnesss/trace-agent/report"
	"github.com/jnesss/trace-agent/rules"
	"github.com/jnesss/trace-agent/sink"
	"github.com/jnesss/trace-agent/source"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args, os.Stderr))
}

// run parses args, detaches and relays until stopped. It returns the exit status.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet(filepath.Base(args[0]), flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional YAML config file")
	foreground := fs.Bool("foreground", false, "stay attached to the terminal and log to stderr")
	journal := fs.String("journal", "", "record sessions in this SQLite database")
	rulesDir := fs.String("rules", "", "directory of Sigma rules checked on progress reports")
	runAs := fs.String("user", "", "switch to this user once source and destination are open (SUDO_USER for the invoking user)")
	logLevel := fs.String("log-level", "info", "log level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <from> <to>\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}

	// Explicit flags take precedence over the config file and environment.
	overrides := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "foreground":
			overrides["foreground"] = strconv.FormatBool(*foreground)
		case "journal":
			overrides["journal"] = *journal
		case "rules":
			overrides["rules"] = *rulesDir
		case "user":
			overrides["user"] = *runAs
		case "log-level":
			overrides["log_level"] = *logLevel
		}
	})
	cfg, err := config.Load(*configPath, config.Defaults{LogLevel: *logLevel}, overrides)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	from, to, err := absolutePaths(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	childArgs, err := detachedArgs(fs, cfg, *configPath, from, to)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if err := RunAsBackgroundService(cfg.Foreground, childArgs); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	log, err := logging.New("trace-agent", cfg.LogLevel, cfg.Foreground)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	status := relay(context.Background(), log, cfg, from, to)
	log.Debug("exiting")
	return status
}

// absolutePaths makes file arguments absolute, since a detached agent runs
// from the root directory.
func absolutePaths(from, to string) (string, string, error) {
	from, err := filepath.Abs(from)
	if err != nil {
		return "", "", err
	}
	d, err := sink.ParseDestination(to)
	if err != nil {
		return "", "", err
	}
	if d.Kind == sink.KindFile {
		if to, err = filepath.Abs(to); err != nil {
			return "", "", err
		}
	}
	return from, to, nil
}

// detachedArgs rebuilds the command line for the detached copy of the agent,
// which runs from the root directory. Explicit flags are kept, and every path,
// including journal and rules paths taken from the config file, is made absolute.
func detachedArgs(fs *flag.FlagSet, cfg *config.Config, configPath, from, to string) ([]string, error) {
	paths := map[string]string{
		"config":  configPath,
		"journal": cfg.Journal,
		"rules":   cfg.Rules,
	}
	var args []string
	for _, name := range []string{"config", "journal", "rules"} {
		if paths[name] == "" {
			continue
		}
		abs, err := filepath.Abs(paths[name])
		if err != nil {
			return nil, err
		}
		args = append(args, "-"+name+"="+abs)
	}
	fs.Visit(func(f *flag.Flag) {
		if _, isPath := paths[f.Name]; isPath {
			return
		}
		args = append(args, "-"+f.Name+"="+f.Value.String())
	})
	return append(args, from, to), nil
}

// relay opens the source and destination, runs the pump and releases
// everything on every path.
func relay(ctx context.Context, log *logrus.Logger, cfg *config.Config, from, to string) int {
	src, err := source.Open(from)
	if err != nil {
		log.Error(err)
		return exitFailure
	}
	defer src.Close()

	dst, err := sink.Resolve(ctx, to, log)
	if err != nil {
		log.Error(err)
		return exitFailure
	}
	defer dst.Close()

	digest, err := sink.NewDigestSink(dst, cfg.DigestKey)
	if err != nil {
		log.Errorf("failed to set up stream digest: %v", err)
		return exitFailure
	}

	var db *database.DB
	var sessionID string
	if cfg.Journal != "" {
		db, err = database.NewDB(cfg.Journal)
		if err != nil {
			log.Errorf("failed to open journal: %v", err)
			return exitFailure
		}
		defer db.Close()
		if sessionID, err = db.StartSession(from, to); err != nil {
			log.Errorf("failed to record session: %v", err)
			return exitFailure
		}
		log.Debugf("session %s", sessionID)
	}

	var detector *rules.Detector
	if cfg.Rules != "" {
		detector, err = rules.NewDetector(cfg.Rules, log)
		if err != nil {
			log.Errorf("failed to load rules: %v", err)
			return exitFailure
		}
		defer detector.Close()
	}

	if cfg.User != "" {
		if err := dropPrivileges(cfg.User); err != nil {
			log.Errorf("failed to drop privileges: %v", err)
			return exitFailure
		}
	}

	intr := &pump.Interrupt{}
	intr.OnRequest(func() { src.Interrupt() })
	counters := &pump.Counters{}

	h := &signalHandler{
		log:       log,
		interrupt: intr,
		counters:  counters,
		detector:  detector,
	}
	if ns, ok := dst.(*sink.NetworkSink); ok {
		h.pendingError = ns.PendingError
	}
	stop := h.start()
	defer stop()

	notifyReady(log)
	p := pump.New(src, digest,
		pump.WithInterrupt(intr),
		pump.WithCounters(counters),
		pump.WithLogger(log))
	status := exitSuccess
	if err := p.Run(ctx); err != nil {
		log.Error(err)
		status = exitFailure
	}
	notifyStopping(log)

	snap := counters.Snapshot()
	log.Info(report.FromSnapshot(snap).String())
	if db != nil {
		if err := db.FinishSession(sessionID, snap, digest.Sum64(), status); err != nil {
			log.Errorf("failed to record session: %v", err)
		}
	}
	return status
}
