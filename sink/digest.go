package sink

import (
	"hash"

	"github.com/minio/highwayhash"
)

// DigestKeySize is the HighwayHash key size.
const DigestKeySize = highwayhash.Size

// DigestSink keeps a HighwayHash-64 of every byte accepted by the wrapped
// sink, so a forwarded copy can be checked against the journal.
type DigestSink struct {
	Sink
	h hash.Hash64
}

// NewDigestSink wraps s. key must be DigestKeySize bytes long.
func NewDigestSink(s Sink, key []byte) (*DigestSink, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return nil, err
	}
	return &DigestSink{Sink: s, h: h}, nil
}

func (d *DigestSink) Write(p []byte) (int, error) {
	n, err := d.Sink.Write(p)
	d.h.Write(p[:n])
	return n, err
}

// Sum64 returns the digest of the bytes written so far.
func (d *DigestSink) Sum64() uint64 {
	return d.h.Sum64()
}
