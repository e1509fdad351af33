// Package httpclient executes the individual GET requests issued by the load
// generator.
//
// Each worker owns its own [http.Client], built with [NewClient], so no
// connection pool is shared between goroutines. An [Executor] issues exactly
// one request per [Executor.Get] call, drains the response body, and reports
// failures as a [*RequestError] whose [FailureKind] tells a transport failure
// (no response obtained) apart from a body read failure (response received,
// streaming failed):
//
//	client := httpclient.NewClient(keepAlive, 30*time.Second)
//	exec := httpclient.NewExecutor(target, keepAlive, client)
//	if err := exec.Get(ctx); err != nil {
//		var reqErr *httpclient.RequestError
//		if errors.As(err, &reqErr) && reqErr.Kind == httpclient.FailureBodyRead {
//			// ...
//		}
//	}
//
// HTTP status codes are not inspected; any response whose body can be read to
// completion counts as a success.
//
// The executor never logs. Callers attach thread identity and context.
package httpclient
