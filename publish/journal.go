package publish

import (
	"context"
	"errors"
	"time"
)

// Entry statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry records one publish attempt.
type Entry struct {
	ID         string
	Branch     string
	Number     int
	PostPath   string
	Status     string
	FailedStep Step
	Error      string
	Files      []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal persists publish attempts so an operator can see what a failed
// publish left behind in the repository.
type Journal interface {
	Record(ctx context.Context, e Entry) error
}

func (p *Pipeline) record(ctx context.Context, res Result, err error, started time.Time) {
	if p.journal == nil {
		return
	}
	e := Entry{
		ID:         res.ID,
		Branch:     p.branch,
		Number:     res.Number,
		PostPath:   res.PostPath,
		Status:     StatusOK,
		Files:      res.Files,
		StartedAt:  started,
		FinishedAt: p.now(),
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
		var se *StepError
		if errors.As(err, &se) {
			e.FailedStep = se.Step
		}
	}
	// The attempt is recorded even when the publish was cancelled.
	if jerr := p.journal.Record(context.WithoutCancel(ctx), e); jerr != nil {
		p.logger.Errorf("journal %s: %v", e.ID, jerr)
	}
}
