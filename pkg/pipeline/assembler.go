package pipeline

import (
	"logremap/pkg/models"
)

// assembler groups submitted lines into bounded batches, assigning each
// record a global submission sequence. Emission blocks while the batch
// queue is full, which is what propagates backpressure to the submitter.
type assembler struct {
	size  int
	in    chan models.RawLine
	flush chan chan struct{}
	out   chan models.Batch
	seq   uint64
}

func newAssembler(batchSize, queueDepth int) *assembler {
	return &assembler{
		size:  batchSize,
		in:    make(chan models.RawLine),
		flush: make(chan chan struct{}),
		out:   make(chan models.Batch, queueDepth),
	}
}

// run consumes lines until the intake channel closes, then emits the final
// partial batch and closes the batch queue.
func (a *assembler) run() {
	var items []models.Item
	for {
		select {
		case raw, ok := <-a.in:
			if !ok {
				a.emit(&items)
				close(a.out)
				return
			}
			rec := models.NewRecord(raw)
			items = append(items, models.Item{Seq: a.seq, Raw: raw, Rec: rec})
			a.seq++
			if len(items) >= a.size {
				a.emit(&items)
			}
		case ack := <-a.flush:
			a.emit(&items)
			close(ack)
		}
	}
}

func (a *assembler) emit(items *[]models.Item) {
	if len(*items) == 0 {
		return
	}
	a.out <- models.Batch{Items: *items}
	*items = nil
}
