package streamer

import (
	"errors"
	"fmt"
	"os"

	"github.com/scrogson/sea-streamer/format"
)

// Reader owns a cursor over a .ss file and exposes its data frames one by
// one. beacons and padding are consumed transparently. a Reader never
// modifies the file and shares nothing with other readers, so any number of
// them can scan the same file concurrently with one writer.
type Reader struct {
	// name of the log file on disk
	path string
	file *os.File
	// interval is the beacon spacing, read from the file header
	interval int64
	mode     Mode
	// live flips once a LiveReplay reader catches up with openSize. it
	// never flips back.
	live bool
	// limit bounds a replay reader to the file length observed at open.
	// -1 means unbounded.
	limit    int64
	openSize int64
	// offset is the read cursor. only advances after a full record is
	// decoded.
	offset int64
	chunk  *chunkReader
	// positions is per-stream bookkeeping fed by beacons and frames
	positions map[streamShard]Position
	onBeacon  func(format.Beacon)
	closed    bool
}

// OpenReader opens a log file for reading and positions the cursor at the
// configured start. the mode default is Beginning for replay modes and End
// for live mode.
func OpenReader(path string, config ReaderConfig) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open log file: %w", err)
	}

	raw := make([]byte, format.HeaderLength)
	if _, err := file.ReadAt(raw, 0); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("can't read log file header: %w", err)
	}
	header := format.Header{}
	if err := header.Unmarshal(raw); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("can't parse log file header: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("can't stat log file: %w", err)
	}

	r := Reader{
		path:      path,
		file:      file,
		interval:  int64(header.BeaconInterval),
		mode:      config.Mode,
		live:      config.Mode == ModeLive,
		limit:     -1,
		openSize:  info.Size(),
		offset:    format.HeaderLength,
		chunk:     newChunkReader(file),
		positions: make(map[streamShard]Position),
		onBeacon:  config.OnBeacon,
	}
	if config.Mode == ModeReplay {
		r.limit = info.Size()
	}

	start := config.Start
	if start.isZero() {
		if config.Mode == ModeLive {
			start = End()
		} else {
			start = Beginning()
		}
	}
	// a live-capable At() start may park at the tail pending arrival;
	// that is a valid open
	if err := r.Seek(start); err != nil && !errors.Is(err, PendingErr) {
		_ = file.Close()
		return nil, err
	}
	return &r, nil
}

// Next decodes the record at the cursor and returns the next data frame.
//
//   - EndOfLogErr: replay bound reached, terminal.
//   - PendingErr: the committed bytes end mid-record. the writer is not
//     done; poll or use Writer.WaitForAppend. Next never blocks internally.
//   - format.FormatErr: corruption. the cursor does not advance.
func (r *Reader) Next() (format.Frame, error) {
	if r.closed {
		return format.Frame{}, ClosedErr
	}
	for {
		if r.limit >= 0 && r.offset >= r.limit {
			return format.Frame{}, EndOfLogErr
		}
		raw, err := r.loadClamped(r.offset)
		if err != nil {
			return format.Frame{}, err
		}
		if len(raw) == 0 {
			return format.Frame{}, r.pending()
		}

		tag, err := format.Tag(raw)
		if err != nil {
			return format.Frame{}, format.FormatErr{Offset: r.offset, Err: err}
		}
		switch tag {
		case format.TagPadding:
			boundary := (r.offset/r.interval + 1) * r.interval
			if r.limit >= 0 && boundary > r.limit {
				return format.Frame{}, r.pending()
			}
			complete, err := r.verifyPadding(r.offset, boundary)
			if err != nil {
				return format.Frame{}, err
			}
			if !complete {
				return format.Frame{}, r.pending()
			}
			r.offset = boundary

		case format.TagBeacon:
			beacon := format.Beacon{}
			n, err := r.decodeClamped(r.offset, beacon.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				return format.Frame{}, r.pending()
			}
			if err != nil {
				return format.Frame{}, format.FormatErr{Offset: r.offset, Err: err}
			}
			if beacon.FileOffset != uint64(r.offset) {
				return format.Frame{}, format.FormatErr{Offset: r.offset, Err: format.OffsetMismatchErr}
			}
			for _, entry := range beacon.Summary {
				ss := streamShard{key: entry.StreamKey, shard: entry.ShardID}
				r.positions[ss] = Position{
					StreamKey: entry.StreamKey,
					ShardID:   entry.ShardID,
					Sequence:  entry.MaxSequence,
					Offset:    int64(beacon.FileOffset),
				}
			}
			if r.onBeacon != nil {
				r.onBeacon(beacon)
			}
			r.offset += int64(n)

		case format.TagFrame:
			frame := format.Frame{}
			n, err := r.decodeClamped(r.offset, frame.Unmarshal)
			if errors.Is(err, format.NotEnoughBytesErr) {
				return format.Frame{}, r.pending()
			}
			if err != nil {
				return format.Frame{}, format.FormatErr{Offset: r.offset, Err: err}
			}
			ss := streamShard{key: frame.StreamKey, shard: frame.ShardID}
			r.positions[ss] = Position{
				StreamKey: frame.StreamKey,
				ShardID:   frame.ShardID,
				Sequence:  frame.Sequence,
				Offset:    r.offset,
			}
			r.offset += int64(n)
			r.catchUp()
			return frame, nil
		}
	}
}

// verifyPadding checks that every byte in [offset, boundary) is zero,
// walking the run window by window. a run can exceed a single read window;
// that must not look like an incomplete record. false means the committed
// bytes end before the boundary.
func (r *Reader) verifyPadding(offset, boundary int64) (bool, error) {
	for offset < boundary {
		raw, err := r.loadClamped(offset)
		if err != nil {
			return false, err
		}
		if len(raw) == 0 {
			return false, nil
		}
		run := boundary - offset
		if run > int64(len(raw)) {
			run = int64(len(raw))
		}
		for _, b := range raw[:run] {
			if b != format.TagPadding {
				return false, format.FormatErr{Offset: offset, Err: format.UnknownTagErr}
			}
		}
		offset += run
	}
	return true, nil
}

// pending reports PendingErr and handles the live-replay catch-up: a reader
// that has consumed everything written before open is live from now on.
func (r *Reader) pending() error {
	r.catchUp()
	return PendingErr
}

func (r *Reader) catchUp() {
	if r.mode == ModeLiveReplay && !r.live && r.offset >= r.openSize {
		r.live = true
	}
}

// loadClamped reads a window at offset, never past the replay limit.
func (r *Reader) loadClamped(_offset int64) ([]byte, error) {
	raw, err := r.chunk.load(_offset)
	if err != nil {
		return nil, err
	}
	if r.limit >= 0 && _offset+int64(len(raw)) > r.limit {
		raw = raw[:r.limit-_offset]
	}
	return raw, nil
}

// decodeClamped decodes one record at offset, widening the window on demand
// like chunkReader.decodeAt but honoring the replay limit.
func (r *Reader) decodeClamped(_offset int64, _unmarshal func([]byte) (int, error)) (int, error) {
	for {
		raw, err := r.loadClamped(_offset)
		if err != nil {
			return 0, err
		}
		n, err := _unmarshal(raw)
		if errors.Is(err, format.NotEnoughBytesErr) && len(raw) == len(r.chunk.buf) {
			r.chunk.buf = make([]byte, len(r.chunk.buf)*2)
			continue
		}
		return n, err
	}
}

// Mode returns the reader's effective mode. a LiveReplay reader that has
// caught up reports ModeLive; the transition is one-way.
func (r *Reader) Mode() Mode {
	if r.live {
		return ModeLive
	}
	return r.mode
}

// Offset returns the cursor's byte offset in the file.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Position returns the last known position of a (stream key, shard) pair,
// collected from the frames and beacons the cursor has passed.
func (r *Reader) Position(streamKey string, shardID uint64) (Position, bool) {
	position, ok := r.positions[streamShard{key: streamKey, shard: shardID}]
	return position, ok
}

// Path returns the name of the log file as presented to OpenReader.
func (r *Reader) Path() string {
	return r.path
}

// Close closes the reader, making it unusable for I/O.
func (r *Reader) Close() error {
	if r.closed {
		return ClosedErr
	}
	r.closed = true
	return r.file.Close()
}
