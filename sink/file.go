package sink

import (
	"os"
)

// FileSink writes to a local file.
type FileSink struct {
	*os.File
}

// CreateFile creates or truncates path. The file is created with mode 0666
// before the umask is applied.
func CreateFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, &SinkCreateError{Path: path, Err: err}
	}
	return &FileSink{File: f}, nil
}
