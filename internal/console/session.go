package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"speech-to-tweet/internal/capture"
	"speech-to-tweet/internal/domain"
	"speech-to-tweet/internal/submission"
)

const helpText = `commands:
  start            start recording from the microphone
  stop             stop recording and keep the audio
  select <path>    use an audio file instead of recording
  submit           upload the current audio and wait for tweets
  wait             block until the current job finishes
  cancel           stop polling the current job
  status           show the current state
  help             show this help
  quit             exit`

// Recorder is the capture side of a session.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (*domain.AudioArtifact, error)
	SelectFile(f capture.File) (*domain.AudioArtifact, error)
	Artifact() *domain.AudioArtifact
	Recording() bool
	Disabled() bool
	Close() error
}

// Submitter is the upload side of a session.
type Submitter interface {
	Submit(ctx context.Context, artifact *domain.AudioArtifact) (*submission.Poll, error)
	Cancel()
	Current() *submission.Poll
}

// Session reads commands line by line and drives the controllers. Errors are
// rendered on the display and never end the session.
type Session struct {
	recorder  Recorder
	submitter Submitter
	display   *Display
	in        io.Reader
	logger    *slog.Logger
	loadFile  func(path string) (capture.File, error)
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSession(r Recorder, sub Submitter, d *Display, in io.Reader, opts ...Option) (*Session, error) {
	if r == nil {
		return nil, errors.New("console: recorder must not be nil")
	}
	if sub == nil {
		return nil, errors.New("console: submitter must not be nil")
	}
	if d == nil {
		return nil, errors.New("console: display must not be nil")
	}
	if in == nil {
		return nil, errors.New("console: input must not be nil")
	}
	s := &Session{
		recorder:  r,
		submitter: sub,
		display:   d,
		in:        in,
		logger:    slog.Default(),
		loadFile:  capture.LoadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run processes commands until quit, end of input or ctx cancellation. The
// live poll is cancelled and capture is closed on the way out.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	if s.recorder.Disabled() {
		s.display.Warn("Audio recording is not available. Please upload a voice memo instead.")
	}
	s.display.Info("type 'help' for commands")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return err
			}
			return nil
		case line := <-lines:
			if !s.Execute(ctx, line) {
				return nil
			}
		}
	}
}

func (s *Session) shutdown() {
	s.submitter.Cancel()
	if err := s.recorder.Close(); err != nil {
		s.logger.Warn("closing capture failed", "err", err)
	}
}

// Execute runs one command line. It returns false when the session should end.
func (s *Session) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "start", "record":
		if err := s.recorder.Start(ctx); err != nil {
			s.report(err)
		}
	case "stop":
		a, err := s.recorder.Stop()
		if err != nil {
			s.report(err)
			return true
		}
		if a == nil {
			s.display.Info("not recording")
		}
	case "select", "file":
		if len(args) == 0 {
			s.display.Warn("usage: select <path>")
			return true
		}
		s.selectFile(strings.Join(args, " "))
	case "submit":
		s.submit(ctx)
	case "wait":
		s.wait(ctx)
	case "cancel":
		if s.submitter.Current() == nil {
			s.display.Info("no job in progress")
			return true
		}
		s.submitter.Cancel()
		s.display.SetStatus("Polling cancelled")
	case "status":
		s.status()
	case "help", "?":
		s.display.Info(helpText)
	case "quit", "exit":
		return false
	default:
		s.display.Warn("unknown command " + cmd + ", type 'help'")
	}
	return true
}

func (s *Session) selectFile(path string) {
	f, err := s.loadFile(path)
	if err != nil {
		s.logger.Error("loading audio file failed", "err", err, "path", path)
		s.display.SetStatus("Error: " + err.Error())
		return
	}
	if _, err := s.recorder.SelectFile(f); err != nil {
		s.report(err)
	}
}

func (s *Session) submit(ctx context.Context) {
	if s.recorder.Recording() {
		s.display.Warn("stop the recording before submitting")
		return
	}
	// The controller renders its own failures.
	if _, err := s.submitter.Submit(ctx, s.recorder.Artifact()); err != nil {
		s.logger.Debug("submission failed", "err", err)
	}
}

func (s *Session) wait(ctx context.Context) {
	p := s.submitter.Current()
	if p == nil {
		s.display.Info("no job in progress")
		return
	}
	if _, err := p.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("job ended with error", "err", err, "job_id", p.JobID())
	}
}

func (s *Session) status() {
	text, progress := s.display.Status()
	switch {
	case s.recorder.Recording():
		s.display.Info("recording")
	case s.recorder.Artifact() != nil:
		a := s.recorder.Artifact()
		s.display.Info("audio ready: " + describe(a))
	default:
		s.display.Info("no audio yet")
	}
	if p := s.submitter.Current(); p != nil {
		s.display.Info("polling job " + p.JobID())
	}
	if text != "" {
		s.display.SetStatus(text)
		s.display.SetProgress(progress)
	}
}

func (s *Session) report(err error) {
	if errors.Is(err, capture.ErrAlreadyRecording) {
		s.display.Warn("already recording, type 'stop' first")
		return
	}
	if errors.Is(err, capture.ErrStreamInterrupted) {
		s.logger.Warn("recording interrupted", "err", err)
		s.display.Warn("the recording was interrupted; the audio captured before the failure is ready")
		return
	}
	code, _ := domain.CodeOf(err)
	s.logger.Warn("command failed", "err", err, "code", code)
	s.display.SetStatus(domain.Message(err))
}
