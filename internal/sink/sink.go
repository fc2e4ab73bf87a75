// Package sink defines where recoverable per-file problems are reported.
package sink

import "dupfinder/internal/models"

// ErrorSink accumulates per-file errors and skip reasons.
// *models.ScanMetadata implements it.
type ErrorSink interface {
	RecordError(path string, kind models.ErrorKind, err error)
	RecordSkip(path, reason string)
}

// Nop drops everything.
type Nop struct{}

func (Nop) RecordError(string, models.ErrorKind, error) {}
func (Nop) RecordSkip(string, string)                   {}

var _ ErrorSink = (*models.ScanMetadata)(nil)
