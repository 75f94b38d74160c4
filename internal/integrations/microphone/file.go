package microphone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"speech-to-tweet/internal/capture"
)

// FileSource records from a path: an audio device node, a FIFO fed by an
// external recorder such as arecord or ffmpeg, or a plain file.
type FileSource struct {
	path       string
	chunkBytes int
}

func NewFileSource(path string, chunkBytes int) (*FileSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("microphone: path must not be empty")
	}
	if chunkBytes <= 0 {
		chunkBytes = defaultChunkBytes
	}
	return &FileSource{path: path, chunkBytes: chunkBytes}, nil
}

func (s *FileSource) Open(_ context.Context) (capture.Stream, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("microphone: open %s: %w", s.path, err)
	}
	return newFileStream(f, s.chunkBytes), nil
}

type fileStream struct {
	f       *os.File
	buf     []byte
	stopped atomic.Bool
	once    sync.Once
}

func newFileStream(f *os.File, chunkBytes int) *fileStream {
	return &fileStream{f: f, buf: make([]byte, chunkBytes)}
}

func (s *fileStream) ReadChunk() ([]byte, error) {
	n, err := s.f.Read(s.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if err == nil {
		return nil, nil
	}
	if s.stopped.Load() || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("microphone: read: %w", err)
}

// Stop closes the underlying file, which unblocks a pending read on a pipe.
func (s *fileStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.stopped.Store(true)
		err = s.f.Close()
	})
	return err
}
