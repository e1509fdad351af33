package runner

import (
	"context"

	"github.com/torosent/hyperspank/internal/httpclient"
	"github.com/torosent/hyperspank/internal/logging"
)

// ControlLoop models one hyperactive client: it sends requests back to back,
// without bursts or delays, until its token is cancelled.
type ControlLoop struct {
	exec  Executor
	log   *logging.Logger
	token *CancellationToken
}

func NewControlLoop(exec Executor, log *logging.Logger, token *CancellationToken) *ControlLoop {
	if log == nil {
		log = logging.Discard()
	}
	return &ControlLoop{exec: exec, log: log, token: token}
}

// Run loops until the token is observed inactive and returns the number of
// iterations performed. The token is polled only at the top of each
// iteration, so an in-flight request always completes.
func (c *ControlLoop) Run(ctx context.Context) int {
	iteration := 0
	for {
		if !c.token.Active() {
			c.log.ControlClosed(iteration)
			return iteration
		}

		err := c.exec.Get(ctx)
		iteration++

		if iteration%ControlProgressEvery == 0 {
			c.log.ControlProgress(iteration)
		}
		if err != nil {
			kind, at, cause := describeFailure(err, c.log.Now)
			if kind == httpclient.FailureBodyRead {
				c.log.ControlReadFailed(at, cause)
			} else {
				c.log.ControlTransportFailed(at, cause)
			}
			c.log.ControlAbandoned(iteration)
		}
	}
}
