package classify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 4 * time.Second
	defaultMaxPollAttempts = 300
)

// PollOption configures a Poller.
type PollOption func(*Poller)

// WithPollInterval overrides the fixed wait between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithMaxAttempts overrides the number of status checks before giving up.
func WithMaxAttempts(n int) PollOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// Poller checks batch job status.
type Poller struct {
	backend     Backend
	interval    time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller.
func NewPoller(backend Backend, opts ...PollOption) *Poller {
	p := &Poller{
		backend:     backend,
		interval:    defaultPollInterval,
		maxAttempts: defaultMaxPollAttempts,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll checks the job once. It returns the output artifact when the job
// completed with output, nil while the job is still pending, and a
// BatchProcessingError when the job failed or produced only errors.
func (p *Poller) Poll(ctx context.Context, jobID string) ([]byte, error) {
	job, err := p.backend.Status(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: status of batch %s", jobID)
	}

	switch job.Status {
	case StatusCompleted:
		if job.OutputFileID != "" {
			if job.ErrorFileID != "" {
				zap.L().Warn("classify: batch completed with some errored requests",
					zap.String("job_id", jobID),
					zap.String("error_file_id", job.ErrorFileID),
				)
			}
			data, err := p.backend.Content(ctx, job.OutputFileID)
			if err != nil {
				return nil, eris.Wrapf(err, "classify: fetch output of batch %s", jobID)
			}
			if data == nil {
				data = []byte{}
			}
			return data, nil
		}
		detail := "no output produced"
		if job.ErrorFileID != "" {
			if data, err := p.backend.Content(ctx, job.ErrorFileID); err == nil {
				detail = string(data)
			}
		}
		return nil, &BatchProcessingError{JobID: jobID, RawStatus: job.RawStatus, Detail: detail}
	case StatusFailed:
		return nil, &BatchProcessingError{JobID: jobID, RawStatus: job.RawStatus}
	default:
		return nil, nil
	}
}

// Wait polls at a fixed interval until output is available, the job fails,
// or the attempt budget runs out (TimeoutError).
func (p *Poller) Wait(ctx context.Context, jobID string) ([]byte, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		data, err := p.Poll(ctx, jobID)
		if err != nil || data != nil {
			return data, err
		}

		zap.L().Debug("classify: batch pending",
			zap.String("job_id", jobID),
			zap.Int("attempt", attempt),
		)
		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, eris.Wrapf(err, "classify: waiting for batch %s", jobID)
		}
	}
	return nil, &TimeoutError{JobID: jobID, Attempts: p.maxAttempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
