package models

// Item is one Record travelling through the pipeline together with its
// originating RawLine and the global submission sequence assigned at
// assembly. Seq is what the collector re-orders by.
type Item struct {
	Seq uint64
	Raw RawLine
	Rec Record
}

// Batch is an ordered, bounded group of Items handed to the worker pool as
// one unit. Batch boundaries affect throughput only, never correctness.
type Batch struct {
	Items []Item
}

// Len returns the number of items in the batch.
func (b Batch) Len() int { return len(b.Items) }

// FirstSeq returns the submission sequence of the first item, or 0 for an
// empty batch.
func (b Batch) FirstSeq() uint64 {
	if len(b.Items) == 0 {
		return 0
	}
	return b.Items[0].Seq
}

// Cursor marks the boundary between already-read and unread content of one
// source.
type Cursor struct {
	Source string `json:"source"`
	Offset int64  `json:"offset"`
}
