package sink

import (
	"context"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// NetworkSink writes to a TCP stream.
type NetworkSink struct {
	*net.TCPConn
}

// DialNetwork resolves host, preferring an IPv4 address, and connects to it.
func DialNetwork(ctx context.Context, host, port string, log logrus.FieldLogger) (*NetworkSink, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}
	portNum, err := net.DefaultResolver.LookupPort(ctx, "tcp", port)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}
	ip := pickAddr(addrs)
	log.Debugf("found server: %s at address %s", host, ip)

	addr := net.JoinHostPort(ip.String(), strconv.Itoa(portNum))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	s := &NetworkSink{TCPConn: conn.(*net.TCPConn)}
	if err := s.claimUrgent(); err != nil {
		log.Debugf("failed to claim SIGURG for %s: %v", addr, err)
	}
	return s, nil
}

func pickAddr(addrs []net.IPAddr) net.IP {
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP
		}
	}
	return addrs[0].IP
}

// Sync is a no-op: a stream connection has no durability flush.
func (s *NetworkSink) Sync() error {
	return nil
}

// PendingError returns the pending socket error (SO_ERROR), or nil if there
// is none. Reading it clears it.
func (s *NetworkSink) PendingError() error {
	rc, err := s.SyscallConn()
	if err != nil {
		return err
	}
	var soErr int
	var getErr error
	if err := rc.Control(func(fd uintptr) {
		soErr, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	}); err != nil {
		return err
	}
	if getErr != nil {
		return getErr
	}
	if soErr != 0 {
		return syscall.Errno(soErr)
	}
	return nil
}

// claimUrgent directs SIGURG for out-of-band data on the socket to this
// process.
func (s *NetworkSink) claimUrgent() error {
	rc, err := s.SyscallConn()
	if err != nil {
		return err
	}
	var fcntlErr error
	if err := rc.Control(func(fd uintptr) {
		_, fcntlErr = unix.FcntlInt(fd, unix.F_SETOWN, os.Getpid())
	}); err != nil {
		return err
	}
	return fcntlErr
}
