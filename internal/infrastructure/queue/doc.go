/*
Package queue provides bounded, priority-ordered task execution per named
class of work.

# Overview

Each queue admits up to Concurrency tasks simultaneously via a fixed
worker pool and holds at most MaxSize waiting items. Enqueue never
blocks: at the size bound it fails immediately with ErrQueueFull so the
caller can shed load. Items drain in descending priority order with FIFO
tie-break.

# Usage

	manager := queue.NewManager(queue.Options{Concurrency: 5, MaxSize: 1000}, logger)

	pending, err := manager.Enqueue("reports", func(ctx context.Context) (any, error) {
		return buildReport(ctx)
	}, 10)
	if err != nil {
		// queue full: shed the request
	}

	result, err := pending.Wait(ctx)

# Shutdown

Clear rejects every waiting item with ErrQueueCleared; Close additionally
stops the workers after in-flight tasks finish. Task panics are recovered
into errors so a handle always settles.
*/
package queue
