package streamer

import "errors"

var (
	// PendingErr is not a failure. the bytes at the cursor do not yet form
	// a complete record, typically because a live writer is mid-append.
	// the caller decides whether to poll, sleep or block.
	PendingErr = errors.New("no complete record available yet")

	// EndOfLogErr is returned by a replay-bounded reader once the cursor
	// reaches the file length observed at open time. terminal.
	EndOfLogErr = errors.New("end of log")

	// NotFoundErr is returned by a replay-bounded seek whose target does
	// not exist in the file.
	NotFoundErr = errors.New("seek target not found in log")

	// GroupClosedErr is returned by Consumer.Next once its group was shut
	// down, by the streamer closing or the last member leaving, rather
	// than by the replay running to completion.
	GroupClosedErr = errors.New("consumer group closed")

	ClosedErr       = errors.New("closed")
	NotClosedErr    = errors.New("log is open for read/write")
	WriteLockErr    = errors.New("log file is locked by another writer")
	KeyIsEmptyErr   = errors.New("stream key is empty")
	GroupIsEmptyErr = errors.New("consumer group name is empty")
	BadTargetErr    = errors.New("seek target is not valid for this reader")
)
