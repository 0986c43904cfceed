// Package coordinator runs batch passes whenever the durable wake timer of a
// shard comes due.
//
// The coordinator owns a single goroutine, so passes of one process never
// overlap. Each iteration of its loop:
//
//  1. claims the wake if it is due (WakeTimer.ClaimDue); only one replica
//     sharing the shard wins a given wake
//  2. runs one pass (BatchProcessor.ProcessBatch) when it won the claim
//  3. sleeps until the wake is due, the ingestor nudges it, or the idle poll
//     interval (with jitter) elapses
//
// On start the timer is armed for "now" if it is idle, which turns the first
// iteration into a recovery pass for rows left behind by a crash. A failed
// pass re-arms the timer one poll interval later. Errors are logged and never
// stop the loop.
//
// # Usage Example
//
//	processor, _ := sync.NewBatchProcessor(store, store, client, batchSize, interval)
//	ingestor := sync.NewIngestor(store, store, interval)
//
//	coord := coordinator.New(store, processor,
//	    coordinator.WithNudges(ingestor.Nudges()),
//	    coordinator.WithPollInterval(30*time.Second))
//
//	go coord.Start(ctx)
//	defer coord.Stop()
//
// Time is read from a k8s.io/utils/clock.WithTicker so that tests can drive
// the loop with a fake clock.
package coordinator
