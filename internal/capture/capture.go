package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"speech-to-tweet/internal/domain"
)

const (
	RecordedMIMEType = "audio/webm"
	RecordedFilename = "recording.webm"

	defaultTick = time.Second
)

// ErrAlreadyRecording is returned when an action needs the controller idle.
var ErrAlreadyRecording = errors.New("capture: recording in progress")

// ErrStreamInterrupted is returned by Stop when the microphone stream failed
// before the recording was stopped. The artifact holds what was captured.
var ErrStreamInterrupted = errors.New("capture: microphone stream interrupted")

// Microphone is a permission-gated capture device.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a granted microphone stream. ReadChunk returns chunks in arrival
// order and io.EOF once Stop has been called and buffered data is drained.
type Stream interface {
	ReadChunk() ([]byte, error)
	Stop() error
}

// Display renders capture state.
type Display interface {
	SetElapsed(text string)
	SetRecording(recording bool)
	SetStatus(text string)
	// BindArtifact shows a preview of a and returns the func that releases it.
	BindArtifact(a *domain.AudioArtifact) (release func())
}

// File is a user-selected file.
type File struct {
	Name string
	Type string
	Data []byte
}

// Controller owns the recording lifecycle and the current artifact.
type Controller struct {
	mic     Microphone
	display Display
	logger  *slog.Logger
	tick    time.Duration
	format  recordedFormat

	mu       sync.Mutex
	disabled bool
	opening  bool
	session  *session
	artifact *domain.AudioArtifact
	release  func()
}

type recordedFormat struct {
	mimeType string
	filename string
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTick sets the elapsed clock granularity.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithRecordedFormat overrides the content type and filename of recorded artifacts.
func WithRecordedFormat(mimeType, filename string) Option {
	return func(c *Controller) {
		if mimeType != "" {
			c.format.mimeType = mimeType
		}
		if filename != "" {
			c.format.filename = filename
		}
	}
}

// NewController creates a Controller. A nil mic leaves capture disabled;
// file selection still works.
func NewController(mic Microphone, d Display, opts ...Option) (*Controller, error) {
	if d == nil {
		return nil, errors.New("capture: display must not be nil")
	}
	c := &Controller{
		mic:      mic,
		display:  d,
		logger:   slog.Default(),
		tick:     defaultTick,
		format:   recordedFormat{mimeType: RecordedMIMEType, filename: RecordedFilename},
		disabled: mic == nil,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start opens the microphone and begins recording. The microphone is opened
// without holding the controller lock, so state queries stay responsive
// during a slow handshake.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return domain.NewError(domain.ErrorPermissionDenied,
			"Audio recording is not available. Please upload a voice memo instead.", nil)
	}
	if c.session != nil || c.opening {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.opening = true
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false
	if err != nil {
		c.disabled = true
		c.logger.Error("microphone access failed", "err", err)
		return domain.NewError(domain.ErrorPermissionDenied,
			"Could not access microphone. Please check permissions or use file upload instead.", err)
	}

	s := newSession(stream)
	c.session = s
	c.display.SetElapsed(FormatElapsed(0))
	c.display.SetRecording(true)

	go s.pump(c.logger, func(readErr error) {
		s.stopClockOnce()
		c.display.SetStatus("Error: recording interrupted (" + readErr.Error() + "). Stop the recording to keep what was captured.")
	})
	go s.runClock(c.tick, func(elapsed int) {
		c.display.SetElapsed(FormatElapsed(elapsed))
	})

	c.logger.Info("recording started")
	return nil
}

// Stop finalizes the recording into the current artifact. It is a no-op
// returning (nil, nil) when not recording.
func (c *Controller) Stop() (*domain.AudioArtifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return nil, nil
	}
	c.session = nil

	elapsed := s.stopClock()
	stopErr := s.stream.Stop()
	<-s.drained

	a := &domain.AudioArtifact{
		Data:     s.payload(),
		MIMEType: c.format.mimeType,
		Filename: c.format.filename,
	}
	c.replace(a)
	c.display.SetRecording(false)

	c.logger.Info("recording stopped", "seconds", elapsed, "bytes", len(a.Data))
	if stopErr != nil {
		c.logger.Warn("releasing microphone failed", "err", stopErr)
	}
	if readErr := s.failure(); readErr != nil {
		return a, fmt.Errorf("%w: %w", ErrStreamInterrupted, readErr)
	}
	return a, nil
}

// SelectFile makes f the current artifact. Non-audio files are rejected and
// the current artifact is kept.
func (c *Controller) SelectFile(f File) (*domain.AudioArtifact, error) {
	if !domain.IsAudioType(f.Type) {
		return nil, domain.NewError(domain.ErrorInvalidFileType, "Please select an audio file",
			fmt.Errorf("capture: %q has type %q", f.Name, f.Type))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil || c.opening {
		return nil, ErrAlreadyRecording
	}

	a := &domain.AudioArtifact{Data: f.Data, MIMEType: f.Type, Filename: f.Name}
	c.replace(a)
	c.logger.Info("audio file selected", "filename", f.Name, "type", f.Type, "bytes", len(f.Data))
	return a, nil
}

// Artifact returns the current artifact, or nil.
func (c *Controller) Artifact() *domain.AudioArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Disabled reports whether recording is unavailable for this session.
func (c *Controller) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Close stops any recording and releases the current preview.
func (c *Controller) Close() error {
	if _, err := c.Stop(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.release != nil {
		c.release()
		c.release = nil
	}
	return nil
}

// replace must be called with c.mu held.
func (c *Controller) replace(a *domain.AudioArtifact) {
	if c.release != nil {
		c.release()
	}
	c.artifact = a
	c.release = c.display.BindArtifact(a)
}

// FormatElapsed renders whole seconds as zero-padded MM:SS.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// session is one recording: its chunks and elapsed clock.
type session struct {
	stream Stream

	mu      sync.Mutex
	chunks  [][]byte
	elapsed int
	readErr error

	clockOnce sync.Once
	clockStop chan struct{}
	clockDone chan struct{}
	drained   chan struct{}
}

func newSession(stream Stream) *session {
	return &session{
		stream:    stream,
		clockStop: make(chan struct{}),
		clockDone: make(chan struct{}),
		drained:   make(chan struct{}),
	}
}

// pump appends chunks until the stream ends. A read failure other than
// io.EOF is kept for Stop and passed to onFail.
func (s *session) pump(logger *slog.Logger, onFail func(err error)) {
	defer close(s.drained)
	for {
		chunk, err := s.stream.ReadChunk()
		if len(chunk) > 0 {
			s.mu.Lock()
			s.chunks = append(s.chunks, chunk)
			s.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("microphone read failed", "err", err)
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
				onFail(err)
			}
			return
		}
	}
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

func (s *session) runClock(tick time.Duration, onTick func(elapsed int)) {
	defer close(s.clockDone)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.clockStop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.elapsed++
			n := s.elapsed
			s.mu.Unlock()
			onTick(n)
		}
	}
}

func (s *session) stopClockOnce() {
	s.clockOnce.Do(func() { close(s.clockStop) })
	<-s.clockDone
}

// stopClock stops the ticker and returns the final elapsed seconds.
func (s *session) stopClock() int {
	s.stopClockOnce()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *session) payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil)
}
