package models

import "time"

// TransformResult is the terminal outcome for one submitted Record: exactly
// one is produced per input, success or failure. Epoch records which program
// version evaluated the record; Dur is the evaluation latency.
type TransformResult struct {
	Seq   uint64
	Raw   RawLine
	Rec   Record
	Epoch uint64
	Dur   time.Duration
	Err   error
}

// Failed reports whether this result is a failure.
func (r TransformResult) Failed() bool { return r.Err != nil }
