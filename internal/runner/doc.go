// Package runner is the load generation engine of hyperspank.
//
// An [Orchestrator] starts one goroutine per [Worker] and, optionally, a
// [ControlLoop]:
//
//	orch, err := runner.New(runner.Options{
//		Config: runner.Config{
//			Target:            "http://localhost:8080/",
//			Threads:           4,
//			RequestsPerThread: 100,
//			BurstSize:         10,
//			Delay:             250 * time.Millisecond,
//			PrintOnIteration:  10,
//			ControlThread:     true,
//		},
//		NewExecutor: func(name string) runner.Executor { ... },
//		Logger:      logger,
//	})
//	result := orch.Run(ctx)
//
// # Workers
//
// Each worker owns a request budget and spends it in bursts of up to
// BurstSize requests. After a burst in which every request succeeded, the
// worker sleeps for Delay before the next burst (unless its budget is spent
// or Delay is zero). When a request fails, the worker logs it, abandons the
// rest of the burst and starts the next burst immediately. The abandoned
// requests are deducted from the budget without being sent, so a worker that
// saw failures sends fewer requests than it was configured for. Requests are
// never retried. [WorkerReport] keeps Attempted + Forfeited equal to Budget.
//
// # Control loop
//
// The control loop sends requests back to back, with no pacing, until the
// orchestrator cancels its [CancellationToken]. The token is polled before
// each request, so the in-flight request completes before the loop exits.
// Cancellation happens only after every worker has returned.
//
// # Failures
//
// A panic inside a worker or the control loop is recovered and reported as a
// [JoinError]. It is logged and collected in [Result.JoinErrors]; the other
// goroutines carry on and the control loop is still shut down.
package runner
