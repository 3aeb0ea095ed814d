package pipeline

import (
	"sync"
	"time"

	"logremap/pkg/models"
	"logremap/pkg/telemetry"
)

// pool evaluates batches with a bounded set of workers. The program slot is
// snapshotted once per record, not once per batch, so a swap landing
// mid-batch affects only records that have not started evaluating yet.
type pool struct {
	workers int
	slot    *Slot
	sink    Sink
	in      <-chan models.Batch
	out     chan models.TransformResult
	wg      sync.WaitGroup
}

func newPool(workers int, slot *Slot, sink Sink, in <-chan models.Batch, resultBuf int) *pool {
	return &pool{
		workers: workers,
		slot:    slot,
		sink:    sink,
		in:      in,
		out:     make(chan models.TransformResult, resultBuf),
	}
}

// start launches the workers and closes the result channel once the batch
// queue is closed and drained.
func (p *pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.workerLoop()
		}()
	}
	go func() {
		p.wg.Wait()
		close(p.out)
	}()
}

func (p *pool) workerLoop() {
	for b := range p.in {
		p.sink.IncBatches()
		tr := telemetry.Track("batch")
		results := make([]models.TransformResult, len(b.Items))
		for i, it := range b.Items {
			results[i] = p.evalOne(it)
		}
		tr.Mark("evaluate")
		for _, res := range results {
			p.out <- res
		}
		tr.Finish()
	}
}

// evalOne runs a single record against the program visible right now. An
// evaluation error never aborts sibling records.
func (p *pool) evalOne(it models.Item) models.TransformResult {
	act := p.slot.Snapshot()
	start := time.Now()
	rec, err := act.Program.Evaluate(it.Rec)
	return models.TransformResult{
		Seq:   it.Seq,
		Raw:   it.Raw,
		Rec:   rec,
		Epoch: act.Epoch,
		Dur:   time.Since(start),
		Err:   err,
	}
}
