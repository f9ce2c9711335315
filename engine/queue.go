// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import "sync"

// addressJob is one unit of dispatch work: reconcile one address against
// the indexer.
type addressJob struct {
	address string
}

// dispatcher flattens what would otherwise be a cyclic
// setLookAhead<->processAddress recursion into a single FIFO of address
// jobs. Both setLookAhead's new-address dispatch and the reactive
// push-subscription callback enqueue here; a small pool of workers drains
// it on its own goroutines, so neither caller ever recurses through the
// stack or blocks waiting for the job to finish. Grounded on the
// fixed-worker-pool shape of pktwallet/wallet/workqueue.WorkQueue, adapted
// from a ranged numeric job to an open-ended address-job channel since
// dispatch here is open-ended, not partitioned over a known range.
type dispatcher struct {
	jobs   chan addressJob
	handle func(addressJob)
	wg     sync.WaitGroup
	quit   chan struct{}
}

const defaultQueueBacklog = 256

func newDispatcher(workerCount int, handle func(addressJob)) *dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	d := &dispatcher{
		jobs:   make(chan addressJob, defaultQueueBacklog),
		handle: handle,
		quit:   make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}
	return d
}

func (d *dispatcher) workerLoop() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.jobs:
			d.handle(j)
		case <-d.quit:
			return
		}
	}
}

// enqueue submits a job without blocking the caller on its completion. If
// the backlog is saturated it falls back to a dedicated goroutine so a
// burst of lookahead dispatches never deadlocks the caller holding the
// engine mutex.
func (d *dispatcher) enqueue(j addressJob) {
	select {
	case d.jobs <- j:
	default:
		go d.handle(j)
	}
}

func (d *dispatcher) stop() {
	close(d.quit)
	d.wg.Wait()
}
