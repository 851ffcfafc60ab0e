package streamer

import (
	"errors"
	"fmt"
	"time"

	"github.com/scrogson/sea-streamer/format"
)

type targetKind int

const (
	targetZero targetKind = iota
	targetBeginning
	targetEnd
	targetSequence
	targetTimestamp
)

// Target is a seek destination: the beginning or end of the file, or the
// first frame of a stream at or past a sequence number or timestamp.
type Target struct {
	kind      targetKind
	streamKey string
	shardID   uint64
	sequence  uint64
	timestamp time.Time
}

// Beginning targets the first record in the file.
func Beginning() Target { return Target{kind: targetBeginning} }

// End targets the current end of the file. this is how a live reader
// starts.
func End() Target { return Target{kind: targetEnd} }

// AtSequence targets the frame of (streamKey, shardID) with the smallest
// sequence number >= sequence.
func AtSequence(streamKey string, shardID uint64, sequence uint64) Target {
	return Target{kind: targetSequence, streamKey: streamKey, shardID: shardID, sequence: sequence}
}

// AtTimestamp targets the frame of (streamKey, shardID) with the smallest
// timestamp >= timestamp. among frames sharing that timestamp the first in
// file order wins.
func AtTimestamp(streamKey string, shardID uint64, timestamp time.Time) Target {
	return Target{kind: targetTimestamp, streamKey: streamKey, shardID: shardID, timestamp: timestamp}
}

func (t Target) isZero() bool { return t.kind == targetZero }

// Seek positions the cursor at the target. for At targets it walks the
// beacon index to the latest beacon still before the target, then scans
// frames forward to the exact position, so the cost is one binary search
// plus at most one beacon interval of frames.
//
// the cursor only moves when the seek succeeds, with one exception: a
// live-capable reader seeking a position that has not been written yet
// parks at the end of the log and returns PendingErr — the target is
// expected to arrive. a replay-bounded reader returns NotFoundErr instead.
func (r *Reader) Seek(target Target) error {
	if r.closed {
		return ClosedErr
	}
	switch target.kind {
	case targetBeginning:
		r.offset = format.HeaderLength
		return nil
	case targetEnd:
		if r.limit >= 0 {
			r.offset = r.limit
			return nil
		}
		info, err := r.file.Stat()
		if err != nil {
			return fmt.Errorf("can't stat log file: %w", err)
		}
		r.offset = info.Size()
		return nil
	case targetSequence, targetTimestamp:
		if target.streamKey == "" {
			return KeyIsEmptyErr
		}
		return r.seekTo(target)
	}
	return BadTargetErr
}

func (r *Reader) seekTo(target Target) error {
	bound := r.limit
	if bound < 0 {
		info, err := r.file.Stat()
		if err != nil {
			return fmt.Errorf("can't stat log file: %w", err)
		}
		bound = info.Size()
	}

	offset := r.seekStart(target, bound)

	// linear scan from the chosen beacon (or file start) to the exact
	// target. the cursor is only committed on a hit.
	for offset < bound {
		raw, err := r.chunk.load(offset)
		if err != nil {
			return err
		}
		if bound-offset < int64(len(raw)) {
			raw = raw[:bound-offset]
		}
		if len(raw) == 0 {
			break
		}
		tag, err := format.Tag(raw)
		if err != nil {
			return format.FormatErr{Offset: offset, Err: err}
		}
		switch tag {
		case format.TagPadding:
			// everything below bound is committed, so the run needs no
			// windowed read; it only ends early when its beacon was cut off
			boundary := (offset/r.interval + 1) * r.interval
			if boundary > bound {
				offset = bound
				break
			}
			offset = boundary
		case format.TagBeacon:
			beacon := format.Beacon{}
			n, err := r.decodeBounded(offset, bound, beacon.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				offset = bound
				break
			}
			if err != nil {
				return format.FormatErr{Offset: offset, Err: err}
			}
			offset += int64(n)
		case format.TagFrame:
			frame := format.Frame{}
			n, err := r.decodeBounded(offset, bound, frame.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				offset = bound
				break
			}
			if err != nil {
				return format.FormatErr{Offset: offset, Err: err}
			}
			if frame.StreamKey == target.streamKey && frame.ShardID == target.shardID && targetReached(target, frame) {
				r.offset = offset
				return nil
			}
			offset += int64(n)
		}
	}

	if r.limit >= 0 {
		return NotFoundErr
	}
	r.offset = offset
	r.catchUp()
	return PendingErr
}

func targetReached(target Target, frame format.Frame) bool {
	if target.kind == targetSequence {
		return frame.Sequence >= target.sequence
	}
	return !frame.Timestamp.Before(target.timestamp)
}

// seekStart binary-searches the beacon slots (multiples of the beacon
// interval) for the latest beacon still strictly before the target and
// returns the offset to scan from. a slot probe can land inside an
// oversized frame; such a probe fails validation and the search steps down
// to the previous slot.
func (r *Reader) seekStart(target Target, bound int64) int64 {
	best := int64(format.HeaderLength)
	lo, hi := int64(1), bound/r.interval
	for lo <= hi {
		mid := lo + (hi-lo)/2
		k, beacon, ok := r.probeDown(mid, lo)
		if !ok {
			// no beacon in [lo, mid]
			lo = mid + 1
			continue
		}
		if beaconBefore(beacon, target) {
			best = k * r.interval
			lo = mid + 1
		} else {
			hi = k - 1
		}
	}
	return best
}

// probeDown tries to decode a beacon at slot from, stepping down to floor.
// decode failures are expected here (the slot may sit inside a frame) and
// are not surfaced.
func (r *Reader) probeDown(from, floor int64) (int64, format.Beacon, bool) {
	for k := from; k >= floor; k-- {
		offset := k * r.interval
		beacon := format.Beacon{}
		if _, err := r.chunk.decodeAt(offset, beacon.Unmarshal); err != nil {
			continue
		}
		if beacon.FileOffset != uint64(offset) {
			continue
		}
		return k, beacon, true
	}
	return 0, format.Beacon{}, false
}

// beaconBefore reports whether every frame of the target stream preceding
// the beacon lies strictly before the target, i.e. the scan may safely
// start at this beacon. a stream absent from the summary has no frames
// before the beacon at all.
func beaconBefore(beacon format.Beacon, target Target) bool {
	entry, ok := beacon.Entry(target.streamKey, target.shardID)
	if !ok {
		return true
	}
	if target.kind == targetSequence {
		return entry.MaxSequence < target.sequence
	}
	return entry.MaxTimestamp.Before(target.timestamp)
}

// decodeBounded is decodeClamped against an explicit bound instead of the
// reader's replay limit.
func (r *Reader) decodeBounded(_offset, _bound int64, _unmarshal func([]byte) (int, error)) (int, error) {
	for {
		raw, err := r.chunk.load(_offset)
		if err != nil {
			return 0, err
		}
		if _bound-_offset < int64(len(raw)) {
			raw = raw[:_bound-_offset]
		}
		n, err := _unmarshal(raw)
		if errors.Is(err, format.NotEnoughBytesErr) && len(raw) == len(r.chunk.buf) {
			r.chunk.buf = make([]byte, len(r.chunk.buf)*2)
			continue
		}
		return n, err
	}
}
