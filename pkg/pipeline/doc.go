// Package pipeline drives a bounded-concurrency batch fetch.
//
// Every identifier becomes one task. A dispatcher admits tasks through a
// gate.Gate in submission order, so at most Concurrency transport calls are
// outstanding at any time. Completions surface in completion order, which
// lets the progress reporter tick incrementally and keeps the number of
// buffered results bounded by the budget.
//
// Example usage:
//
//	cfg := pipeline.DefaultConfig()
//	orch, err := pipeline.New(httpClient, fileStore, cfg)
//	if err != nil {
//		return err
//	}
//	report, err := orch.Run(ctx, []fetch.Identifier{"CN", "IN", "US"})
//	fmt.Println(report.Summary())
//
// Per task:
//   - acquire the gate (FIFO, context aware)
//   - call the transport, release the slot on every exit path
//   - persist a successful payload outside the gate
//   - classify and publish the completion
//
// Transport failures and panics are absorbed into the error status; only a
// budget below one rejects a run, before any transport call.
package pipeline
