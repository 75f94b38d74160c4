package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"speech-to-tweet/internal/domain"
)

const (
	defaultPollInterval = 3 * time.Second

	ProgressPreparing  = 10
	ProgressProcessing = 70
	ProgressDone       = 100
)

// Backend is the upload/status API the controller drives.
type Backend interface {
	Upload(ctx context.Context, artifact *domain.AudioArtifact) (string, error)
	Status(ctx context.Context, jobID string) (domain.JobState, error)
}

// Display renders submission state.
type Display interface {
	SetStatus(text string)
	SetProgress(percent int)
	ShowResults(outcome domain.Outcome)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Controller owns the upload and poll lifecycle. At most one Poll is live.
type Controller struct {
	backend  Backend
	display  Display
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	current *Poll
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(b Backend, d Display, opts ...Option) (*Controller, error) {
	if b == nil {
		return nil, errors.New("submission: backend must not be nil")
	}
	if d == nil {
		return nil, errors.New("submission: display must not be nil")
	}
	c := &Controller{
		backend:  b,
		display:  d,
		logger:   slog.Default(),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit uploads artifact and starts polling the resulting job. The returned
// Poll ends on a terminal status, a failed check, or Cancel. A later Submit
// cancels the previous Poll.
func (c *Controller) Submit(ctx context.Context, artifact *domain.AudioArtifact) (*Poll, error) {
	if artifact == nil {
		err := domain.NewError(domain.ErrorNoArtifact, "Please record audio or upload a voice memo first", nil)
		c.display.SetStatus(err.Reason)
		return nil, err
	}

	c.Cancel()

	c.display.SetStatus("Preparing to upload...")
	c.display.SetProgress(ProgressPreparing)
	c.display.SetStatus("Uploading audio...")

	jobID, err := c.backend.Upload(ctx, artifact)
	if err != nil {
		uerr := classifyUploadError(err)
		c.fail(uerr)
		c.logger.Error("upload failed", "err", err, "filename", artifact.Filename, "bytes", artifact.Size())
		return nil, uerr
	}

	c.logger.Info("audio uploaded", "job_id", jobID, "filename", artifact.Filename, "bytes", artifact.Size())
	c.display.SetStatus("Audio uploaded successfully. Tweet generation in progress...")
	c.display.SetProgress(ProgressProcessing)

	p := c.startPoll(ctx, jobID)
	return p, nil
}

// Cancel stops the live poll loop, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	p := c.current
	c.current = nil
	c.mu.Unlock()
	if p != nil {
		p.Cancel()
	}
}

// Current returns the live poll, or nil.
func (c *Controller) Current() *Poll {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) startPoll(ctx context.Context, jobID string) *Poll {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &Poll{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.current
	c.current = p
	c.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	go c.poll(pollCtx, p)
	return p
}

type checkResult struct {
	n     int
	state domain.JobState
	err   error
}

// poll issues one status check per tick. Each check runs on its own
// goroutine so a hung request never holds back the next tick; results are
// handled here, one at a time, and the first terminal one ends the loop.
func (c *Controller) poll(ctx context.Context, p *Poll) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer c.release(p)

	results := make(chan checkResult)
	checks := 0
	for {
		select {
		case <-ctx.Done():
			p.finish(domain.Outcome{JobID: p.jobID}, ctx.Err())
			return
		case <-ticker.C:
			checks++
			go c.check(ctx, p.jobID, checks, results)
		case r := <-results:
			if c.settle(ctx, p, r) {
				return
			}
		}
	}
}

func (c *Controller) check(ctx context.Context, jobID string, n int, results chan<- checkResult) {
	state, err := c.backend.Status(ctx, jobID)
	select {
	case results <- checkResult{n: n, state: state, err: err}:
	case <-ctx.Done():
	}
}

// settle applies one check result and reports whether the poll is over.
func (c *Controller) settle(ctx context.Context, p *Poll, r checkResult) bool {
	if ctx.Err() != nil {
		p.finish(domain.Outcome{JobID: p.jobID}, ctx.Err())
		return true
	}

	if r.err != nil {
		serr := classifyStatusError(r.err)
		if !c.publish(ctx, p, func() { c.fail(serr) }) {
			p.finish(domain.Outcome{JobID: p.jobID}, context.Canceled)
			return true
		}
		c.logger.Error("status check failed", "err", r.err, "job_id", p.jobID, "check", r.n)
		p.finish(domain.Outcome{JobID: p.jobID}, serr)
		return true
	}

	c.logger.Debug("job status", "job_id", p.jobID, "status", r.state.Status, "check", r.n)
	outcome := domain.Outcome{JobID: p.jobID, JobState: r.state}

	switch r.state.Status {
	case domain.StatusCompleted:
		shown := c.publish(ctx, p, func() {
			c.display.SetProgress(ProgressDone)
			c.display.SetStatus("Tweets have been generated and posted!")
			c.display.ShowResults(outcome)
		})
		if !shown {
			p.finish(domain.Outcome{JobID: p.jobID}, context.Canceled)
			return true
		}
		c.logger.Info("job completed", "job_id", p.jobID, "items", len(r.state.Items), "check", r.n)
		p.finish(outcome, nil)
		return true
	case domain.StatusFailed:
		jerr := domain.NewError(domain.ErrorJobFailed, "Error: "+r.state.Error, nil)
		if !c.publish(ctx, p, func() { c.fail(jerr) }) {
			p.finish(domain.Outcome{JobID: p.jobID}, context.Canceled)
			return true
		}
		c.logger.Warn("job failed", "job_id", p.jobID, "error", r.state.Error, "check", r.n)
		p.finish(outcome, jerr)
		return true
	}
	return false
}

// publish runs render only while p is the live poll. Holding c.mu keeps a
// concurrent Submit or Cancel from interleaving with it.
func (c *Controller) publish(ctx context.Context, p *Poll, render func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != p || ctx.Err() != nil {
		return false
	}
	render()
	return true
}

// release drops p as the current poll if nothing superseded it.
func (c *Controller) release(p *Poll) {
	p.cancel()
	c.mu.Lock()
	if c.current == p {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *Controller) fail(err *domain.Error) {
	c.display.SetProgress(0)
	c.display.SetStatus(err.Reason)
}

func classifyUploadError(err error) *domain.Error {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return domain.NewError(domain.ErrorUploadFailed,
			fmt.Sprintf("Error: upload failed (%d): %s", statusErr.HTTPStatusCode(), responseBody(err)), err)
	}
	if errors.Is(err, domain.ErrMalformedResponse) {
		return domain.NewError(domain.ErrorUploadFailed, "Error: upload failed: unexpected response from server", err)
	}
	return domain.NewError(domain.ErrorNetwork, "Error: "+rootMessage(err), err)
}

func classifyStatusError(err error) *domain.Error {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return domain.NewError(domain.ErrorStatusCheckFailed,
			fmt.Sprintf("Error: status check failed (%d): %s", statusErr.HTTPStatusCode(), responseBody(err)), err)
	}
	if errors.Is(err, domain.ErrMalformedResponse) {
		return domain.NewError(domain.ErrorStatusCheckFailed, "Error: status check failed: unexpected response from server", err)
	}
	return domain.NewError(domain.ErrorNetwork, "Error: "+rootMessage(err), err)
}

type bodyCarrier interface {
	ResponseBody() string
}

func responseBody(err error) string {
	var bc bodyCarrier
	if errors.As(err, &bc) {
		return bc.ResponseBody()
	}
	return err.Error()
}

// rootMessage returns the innermost error text, dropping package prefixes.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
