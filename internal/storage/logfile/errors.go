package logfile

import "errors"

var (
	// ErrOffsetOutOfRange reports a ReadAt offset beyond the end of the
	// file, or one that does not land on a valid record boundary.
	ErrOffsetOutOfRange = errors.New("logfile: offset out of range")

	// ErrCorruptRecord reports a record whose BSON bytes failed to parse.
	ErrCorruptRecord = errors.New("logfile: corrupt record")
)
