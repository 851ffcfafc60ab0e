package streamer

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/scrogson/sea-streamer/format"
)

// Writer owns the append cursor of a .ss file. exactly one Writer may own a
// file at a time; the open takes an exclusive file lock to enforce that.
// multiple readers may scan the file concurrently with a writer.
type Writer struct {
	// name of the log file on disk
	path string
	file *os.File
	// interval is the beacon spacing in bytes, fixed at file creation
	interval int64
	// offset is the append cursor. always a record boundary.
	offset int64
	// nextBeacon is the next interval multiple that should receive a
	// beacon record
	nextBeacon int64
	// sequences holds the next sequence number per (stream key, shard)
	sequences map[streamShard]uint64
	// summary is the running per-stream state written into beacons
	summary map[streamShard]format.SummaryEntry
	mu      sync.Mutex
	// notify is closed and replaced on every append to wake blocked
	// tailers
	notify chan struct{}
	closed bool
}

// OpenWriter opens a log file for appending. a new file gets a fresh header;
// an existing file is scanned to rebuild the sequence counters and running
// summary, and a torn tail from a crashed writer is truncated back to the
// last complete record.
func OpenWriter(path string, config Config) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("can't open log file: %w", err)
	}
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, err
	}

	w := Writer{
		path:      path,
		file:      file,
		interval:  int64(config.interval()),
		sequences: make(map[streamShard]uint64),
		summary:   make(map[streamShard]format.SummaryEntry),
		notify:    make(chan struct{}),
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("can't stat log file: %w", err)
	}
	if info.Size() == 0 {
		err = w.writeHead()
	} else {
		err = w.readHead()
		if err == nil {
			err = w.scan(info.Size())
		}
	}
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &w, nil
}

func (w *Writer) writeHead() error {
	raw, err := format.Header{Version: format.Version, BeaconInterval: uint32(w.interval)}.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.file.WriteAt(raw, 0); err != nil {
		return fmt.Errorf("can't write log file header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("can't sync file changes to disk: %w", err)
	}
	w.offset = format.HeaderLength
	w.nextBeacon = w.interval
	return nil
}

func (w *Writer) readHead() error {
	raw := make([]byte, format.HeaderLength)
	if _, err := w.file.ReadAt(raw, 0); err != nil {
		return fmt.Errorf("can't read log file header: %w", err)
	}
	header := format.Header{}
	if err := header.Unmarshal(raw); err != nil {
		return fmt.Errorf("can't parse log file header: %w", err)
	}
	// the file's own interval wins over the config
	w.interval = int64(header.BeaconInterval)
	return nil
}

// scan walks every record to rebuild the in-memory state. good tracks the
// end of the last complete record; everything past it is a torn tail.
func (w *Writer) scan(size int64) error {
	chunk := newChunkReader(w.file)
	offset := int64(format.HeaderLength)
	good := offset
	w.nextBeacon = w.interval

	for offset < size {
		raw, err := chunk.load(offset)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			break
		}
		tag, err := format.Tag(raw)
		if err != nil && !errors.Is(err, format.NotEnoughBytesErr) {
			return format.FormatErr{Offset: offset, Err: err}
		}

		switch tag {
		case format.TagPadding:
			boundary := (offset/w.interval + 1) * w.interval
			if boundary > size {
				// pad run never reached its beacon
				offset = size
				break
			}
			offset = boundary

		case format.TagBeacon:
			beacon := format.Beacon{}
			n, err := chunk.decodeAt(offset, beacon.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				offset = size
				break
			}
			if err != nil {
				return format.FormatErr{Offset: offset, Err: err}
			}
			if beacon.FileOffset != uint64(offset) {
				return format.FormatErr{Offset: offset, Err: format.OffsetMismatchErr}
			}
			offset += int64(n)
			good = offset
			w.nextBeacon = int64(beacon.FileOffset) + w.interval

		case format.TagFrame:
			frame := format.Frame{}
			n, err := chunk.decodeAt(offset, frame.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				offset = size
				break
			}
			if err != nil {
				return format.FormatErr{Offset: offset, Err: err}
			}
			ss := streamShard{key: frame.StreamKey, shard: frame.ShardID}
			w.sequences[ss] = frame.Sequence + 1
			w.summary[ss] = format.SummaryEntry{
				StreamKey:    frame.StreamKey,
				ShardID:      frame.ShardID,
				MaxSequence:  frame.Sequence,
				MaxTimestamp: frame.Timestamp,
			}
			offset += int64(n)
			good = offset
		}
	}

	if good < size {
		if err := w.file.Truncate(good); err != nil {
			return fmt.Errorf("can't truncate torn tail: %w", err)
		}
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("can't sync file changes to disk: %w", err)
		}
	}
	w.offset = good
	return nil
}

// Append assigns the next sequence number and the current timestamp for the
// (stream key, shard) pair, frames the payload and commits it. when the
// frame would cross the next beacon boundary, padding and a beacon are
// committed in the same write, so a reader observes either the whole batch
// prefix-complete or nothing decodable past the old end.
func (w *Writer) Append(streamKey string, shardID uint64, payload []byte) (uint64, error) {
	if streamKey == "" {
		return 0, KeyIsEmptyErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ClosedErr
	}

	ss := streamShard{key: streamKey, shard: shardID}
	sequence := w.sequences[ss]
	timestamp := time.Now().UTC().Truncate(time.Millisecond)

	frameRaw, err := format.Frame{
		StreamKey: streamKey,
		ShardID:   shardID,
		Sequence:  sequence,
		Timestamp: timestamp,
		Payload:   payload,
	}.Marshal()
	if err != nil {
		return 0, err
	}

	// boundaries spanned by a previous oversized frame get no beacon
	for w.nextBeacon < w.offset {
		w.nextBeacon += w.interval
	}

	var out []byte
	beaconWritten := false
	if w.offset+int64(len(frameRaw)) > w.nextBeacon {
		beaconRaw, err := format.Beacon{
			FileOffset: uint64(w.nextBeacon),
			Summary:    w.summaryEntries(),
		}.Marshal()
		if err != nil {
			return 0, err
		}
		padding := w.nextBeacon - w.offset
		out = make([]byte, padding, padding+int64(len(beaconRaw))+int64(len(frameRaw)))
		out = append(out, beaconRaw...)
		beaconWritten = true
	}
	out = append(out, frameRaw...)

	if _, err := w.file.WriteAt(out, w.offset); err != nil {
		return 0, fmt.Errorf("can't write to log file: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("can't sync file changes to disk: %w", err)
	}

	w.offset += int64(len(out))
	if beaconWritten {
		w.nextBeacon += w.interval
	}
	w.sequences[ss] = sequence + 1
	w.summary[ss] = format.SummaryEntry{
		StreamKey:    streamKey,
		ShardID:      shardID,
		MaxSequence:  sequence,
		MaxTimestamp: timestamp,
	}

	// wake blocked tailers
	close(w.notify)
	w.notify = make(chan struct{})

	return sequence, nil
}

func (w *Writer) summaryEntries() []format.SummaryEntry {
	entries := make([]format.SummaryEntry, 0, len(w.summary))
	for _, entry := range w.summary {
		entries = append(entries, entry)
	}
	return entries
}

// WaitForAppend blocks until either a new append occurs or timeout elapses.
// It returns true if woken by an append, false on timeout. a timeout <= 0
// blocks indefinitely.
func (w *Writer) WaitForAppend(timeout time.Duration) bool {
	w.mu.Lock()
	ch := w.notify
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return false
	}
	if timeout <= 0 {
		<-ch
		return true
	}
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Sequence returns the next sequence number the writer would assign for the
// (stream key, shard) pair. zero means the stream has not been written yet.
func (w *Writer) Sequence(streamKey string, shardID uint64) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sequences[streamShard{key: streamKey, shard: shardID}]
}

// Size returns the byte size of the log file as tracked by the append
// cursor.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// Path returns the name of the log file as presented to OpenWriter.
func (w *Writer) Path() string {
	return w.path
}

// IsClosed returns true if the writer is already closed
func (w *Writer) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close releases the write lock and closes the file, making the writer
// unusable for further appends.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ClosedErr
	}
	w.closed = true
	close(w.notify)
	if err := unlockFile(w.file); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("can't unlock log file: %w", err)
	}
	return w.file.Close()
}

// Remove deletes the log file from disk. the writer must be closed first.
func (w *Writer) Remove() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		return NotClosedErr
	}
	if err := os.Remove(w.path); err != nil {
		return fmt.Errorf("can't delete log file from disk: %w", err)
	}
	return nil
}
