package format

import (
	"errors"
	"strconv"
)

var (
	NotEnoughBytesErr  = errors.New("not enough bytes for a complete record")
	UnknownTagErr      = errors.New("unknown record tag")
	ChecksumErr        = errors.New("record checksum mismatch")
	BadMagicErr        = errors.New("file header magic mismatch")
	VersionErr         = errors.New("unsupported format version")
	BeaconIntervalErr  = errors.New("beacon interval is too small")
	OffsetMismatchErr  = errors.New("beacon self offset mismatch")
	KeyTooLongErr      = errors.New("stream key is too long")
	SummaryTooLargeErr = errors.New("beacon summary has too many entries")
)

// FormatErr occurs when the bytes at a record boundary do not decode to a
// valid frame or beacon. The read position must not advance past it.
type FormatErr struct {
	Offset int64
	Err    error
}

func (e FormatErr) Error() string {
	return "invalid record at offset " + strconv.FormatInt(e.Offset, 10) + ": " + e.Err.Error()
}

func (e FormatErr) Unwrap() error { return e.Err }
