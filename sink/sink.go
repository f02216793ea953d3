// Package sink resolves the destination a trace stream is forwarded to: a
// local file or a TCP connection to host:port.
package sink

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sink is a forwarding destination.
type Sink interface {
	io.Writer
	// Sync forces written data to stable storage, where the sink has any.
	Sync() error
	Close() error
}

// Kind distinguishes file and network destinations.
type Kind int

const (
	KindFile Kind = iota
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Destination is a parsed destination argument.
type Destination struct {
	Kind Kind
	// Path is set for file destinations.
	Path string
	// Host and Port are set for network destinations.
	Host string
	Port string
}

func (d Destination) String() string {
	if d.Kind == KindNetwork {
		return net.JoinHostPort(d.Host, d.Port)
	}
	return d.Path
}

// ParseDestination classifies dest. Anything containing a colon is taken as
// host:port, everything else as a file path.
func ParseDestination(dest string) (Destination, error) {
	if !strings.Contains(dest, ":") {
		if dest == "" {
			return Destination{}, fmt.Errorf("empty destination")
		}
		return Destination{Kind: KindFile, Path: dest}, nil
	}
	host, port, err := net.SplitHostPort(dest)
	if err != nil {
		return Destination{}, &ResolutionError{Host: dest, Err: err}
	}
	if host == "" || port == "" {
		return Destination{}, &ResolutionError{Host: dest, Err: fmt.Errorf("missing host or port")}
	}
	return Destination{Kind: KindNetwork, Host: host, Port: port}, nil
}

// Resolve parses dest and opens the corresponding sink.
func Resolve(ctx context.Context, dest string, log logrus.FieldLogger) (Sink, error) {
	d, err := ParseDestination(dest)
	if err != nil {
		return nil, err
	}
	if d.Kind == KindNetwork {
		ns, err := DialNetwork(ctx, d.Host, d.Port, log)
		if err != nil {
			return nil, err
		}
		return ns, nil
	}
	fs, err := CreateFile(d.Path)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// ResolutionError is returned when the host or port of a network
// destination cannot be resolved.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("looking up host %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConnectError is returned when the connection to a resolved address fails.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SinkCreateError is returned when the destination file cannot be created.
type SinkCreateError struct {
	Path string
	Err  error
}

func (e *SinkCreateError) Error() string {
	return fmt.Sprintf("opening file %s: %v", e.Path, e.Err)
}

func (e *SinkCreateError) Unwrap() error { return e.Err }
