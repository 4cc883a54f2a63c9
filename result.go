package fwaudio

import "github.com/kbukum/fwaudio/pretrain"

// Result is one item produced by a Reader: a record, or the failure of the
// file named by Input.
type Result struct {
	// Input is the file the result came from.
	Input string
	Data  *pretrain.Data
	// Err is a TRANSCRIPTION_FAILED AppError when the file could not be read.
	Err error
}

// OK reports whether the result carries a record.
func (r Result) OK() bool { return r.Err == nil && r.Data != nil }
