package engine

import (
	"context"
	"time"
)

// NoopExecutor accepts every statement and returns an empty result. It stands
// in where no execution core is wired, keeping session admission and warm-up
// observable end to end.
type NoopExecutor struct{}

func (NoopExecutor) Execute(ctx context.Context, session *Session, statement string) (*QueryResult, error) {
	start := time.Now()
	return &QueryResult{ExecutionTime: time.Since(start)}, nil
}
