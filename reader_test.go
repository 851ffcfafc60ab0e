package streamer

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrogson/sea-streamer/format"
)

// writeStream creates a log with one frame per payload, all on the given
// stream key, shard 0, and returns the file path.
func writeStream(t *testing.T, interval uint32, streamKey string, payloads ...string) string {
	t.Helper()
	path := testPath(t)
	writer := openWriterHelper(t, path, interval)
	for _, payload := range payloads {
		_, err := writer.Append(streamKey, 0, []byte(payload))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return path
}

func TestReaderReplay(t *testing.T) {
	path := writeStream(t, 128, "hello", "m1", "m2", "m3")

	var events []string
	reader, err := OpenReader(path, ReaderConfig{
		Mode: ModeReplay,
		OnBeacon: func(beacon format.Beacon) {
			events = append(events, fmt.Sprintf("beacon@%d", beacon.FileOffset))
		},
	})
	require.NoError(t, err)
	defer reader.Close()

	for i, payload := range []string{"m1", "m2", "m3"} {
		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "hello", frame.StreamKey)
		assert.Equal(t, uint64(0), frame.ShardID)
		assert.Equal(t, uint64(i), frame.Sequence)
		assert.Equal(t, payload, string(frame.Payload))
		events = append(events, payload)
	}

	_, err = reader.Next()
	require.ErrorIs(t, err, EndOfLogErr)
	// terminal
	_, err = reader.Next()
	require.ErrorIs(t, err, EndOfLogErr)

	// the third frame crosses the first interval boundary, so the beacon
	// sits between m2 and m3
	assert.Equal(t, []string{"m1", "m2", "beacon@128", "m3"}, events)
}

func TestReaderReplayIgnoresLaterAppends(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 1024)
	defer writer.Close()
	_, err := writer.Append("hello", 0, []byte("m1"))
	require.NoError(t, err)

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	// appended after open, outside the replay bound
	_, err = writer.Append("hello", 0, []byte("m2"))
	require.NoError(t, err)

	frame, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "m1", string(frame.Payload))

	_, err = reader.Next()
	require.ErrorIs(t, err, EndOfLogErr)
}

func TestReaderLive(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 1024)
	defer writer.Close()
	_, err := writer.Append("hello", 0, []byte("old"))
	require.NoError(t, err)

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeLive})
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, ModeLive, reader.Mode())

	// starts at the end, nothing to read yet
	_, err = reader.Next()
	require.ErrorIs(t, err, PendingErr)

	_, err = writer.Append("hello", 0, []byte("new"))
	require.NoError(t, err)

	frame, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "new", string(frame.Payload))
	assert.Equal(t, uint64(1), frame.Sequence)

	_, err = reader.Next()
	require.ErrorIs(t, err, PendingErr)
}

func TestReaderLiveReplayTransition(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 1024)
	defer writer.Close()
	for _, payload := range []string{"m1", "m2"} {
		_, err := writer.Append("hello", 0, []byte(payload))
		require.NoError(t, err)
	}

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeLiveReplay})
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, ModeLiveReplay, reader.Mode())

	for _, payload := range []string{"m1", "m2"} {
		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, payload, string(frame.Payload))
	}
	// caught up with the open-time end of the log
	assert.Equal(t, ModeLive, reader.Mode())

	_, err = reader.Next()
	require.ErrorIs(t, err, PendingErr)

	_, err = writer.Append("hello", 0, []byte("m3"))
	require.NoError(t, err)

	frame, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "m3", string(frame.Payload))
}

func TestReaderPartialWritePending(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 1024)
	for _, payload := range []string{"m1", "m2"} {
		_, err := writer.Append("hello", 0, []byte(payload))
		require.NoError(t, err)
	}
	size := writer.Size()
	require.NoError(t, writer.Close())

	// a frame cut short looks like an append in flight, not corruption
	require.NoError(t, os.Truncate(path, size-5))

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	frame, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "m1", string(frame.Payload))

	_, err = reader.Next()
	require.ErrorIs(t, err, PendingErr)
}

func TestReaderCorruptFrame(t *testing.T) {
	path := writeStream(t, 1024, "hello", "m1", "m2")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// flip a bit inside the first frame's timestamp field
	raw[40] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0644))

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	before := reader.Offset()
	_, err = reader.Next()
	formatErr := format.FormatErr{}
	require.ErrorAs(t, err, &formatErr)
	require.ErrorIs(t, err, format.ChecksumErr)
	assert.Equal(t, int64(format.HeaderLength), formatErr.Offset)
	// the cursor does not advance past corruption
	assert.Equal(t, before, reader.Offset())

	_, err = reader.Next()
	require.ErrorIs(t, err, format.ChecksumErr)
}

func TestReaderPositionBookkeeping(t *testing.T) {
	path := writeStream(t, 1024, "hello", "m1", "m2", "m3")

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	_, ok := reader.Position("hello", 0)
	assert.False(t, ok)

	for {
		if _, err := reader.Next(); err != nil {
			require.ErrorIs(t, err, EndOfLogErr)
			break
		}
	}

	position, ok := reader.Position("hello", 0)
	require.True(t, ok)
	assert.Equal(t, uint64(2), position.Sequence)
	assert.Equal(t, "hello", position.StreamKey)
}

func TestReaderBeaconConsistency(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 256)
	for i := 0; i < 40; i++ {
		key := "alpha"
		if i%3 == 0 {
			key = "beta"
		}
		_, err := writer.Append(key, 0, []byte(fmt.Sprintf("payload %d with some bulk to cross boundaries", i)))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	// every beacon summary must agree with the frames read before it
	maxSeq := map[string]uint64{}
	seen := map[string]bool{}
	beacons := 0
	reader, err := OpenReader(path, ReaderConfig{
		Mode: ModeReplay,
		OnBeacon: func(beacon format.Beacon) {
			beacons++
			for _, entry := range beacon.Summary {
				require.True(t, seen[entry.StreamKey], "beacon lists a stream with no prior frames")
				assert.Equal(t, maxSeq[entry.StreamKey], entry.MaxSequence)
			}
		},
	})
	require.NoError(t, err)
	defer reader.Close()

	for {
		frame, err := reader.Next()
		if err != nil {
			require.ErrorIs(t, err, EndOfLogErr)
			break
		}
		seen[frame.StreamKey] = true
		maxSeq[frame.StreamKey] = frame.Sequence
	}
	assert.GreaterOrEqual(t, beacons, 2)
}

func TestReaderOversizedFrame(t *testing.T) {
	path := testPath(t)
	writer := openWriterHelper(t, path, 128)
	// the first frame spans several beacon intervals
	big := make([]byte, 1000)
	for i := range big {
		big[i] = byte(i)
	}
	_, err := writer.Append("hello", 0, big)
	require.NoError(t, err)
	for _, payload := range []string{"m1", "m2"} {
		_, err := writer.Append("hello", 0, []byte(payload))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	frame, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, big, frame.Payload)

	for _, payload := range []string{"m1", "m2"} {
		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, payload, string(frame.Payload))
	}
	_, err = reader.Next()
	require.ErrorIs(t, err, EndOfLogErr)
}

// writeWideIntervalLog builds a log whose beacon interval exceeds the read
// window: 1939 small frames end at offset 95027, then a 40KiB frame crosses
// the boundary at 128KiB, leaving a padding run of roughly 36KiB.
func writeWideIntervalLog(t *testing.T) string {
	t.Helper()
	path := testPath(t)
	writer := openWriterHelper(t, path, 128*1024)
	for i := 0; i < 1939; i++ {
		_, err := writer.Append("hello", 0, []byte("abcde"))
		require.NoError(t, err)
	}
	_, err := writer.Append("hello", 0, make([]byte, 40*1024))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return path
}

func TestReaderPaddingLongerThanReadWindow(t *testing.T) {
	path := writeWideIntervalLog(t)

	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	defer reader.Close()

	count := 0
	var last format.Frame
	for {
		frame, err := reader.Next()
		if err != nil {
			require.ErrorIs(t, err, EndOfLogErr)
			break
		}
		count++
		last = frame
	}
	assert.Equal(t, 1940, count)
	assert.Equal(t, uint64(1939), last.Sequence)
	assert.Equal(t, 40*1024, len(last.Payload))
}

func TestReaderClosed(t *testing.T) {
	path := writeStream(t, 1024, "hello", "m1")
	reader, err := OpenReader(path, ReaderConfig{Mode: ModeReplay})
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	_, err = reader.Next()
	assert.ErrorIs(t, err, ClosedErr)
	assert.ErrorIs(t, reader.Close(), ClosedErr)
}
