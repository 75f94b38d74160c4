package submission

import (
	"context"
	"sync"

	"speech-to-tweet/internal/domain"
)

// Poll is the cancellation handle of one job's status loop.
type Poll struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}

	once    sync.Once
	outcome domain.Outcome
	err     error
}

func (p *Poll) JobID() string {
	return p.jobID
}

// Cancel stops polling. Safe to call more than once and after completion.
func (p *Poll) Cancel() {
	p.cancel()
}

// Done is closed once the loop has exited.
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the loop exits or ctx ends. A cancelled poll reports
// context.Canceled.
func (p *Poll) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return domain.Outcome{JobID: p.jobID}, ctx.Err()
	}
}

func (p *Poll) finish(outcome domain.Outcome, err error) {
	p.once.Do(func() {
		p.outcome = outcome
		p.err = err
		close(p.done)
	})
}
