package format

import (
	"sort"
	"time"
)

const (
	lengthOfOffsetField = 8
	lengthOfCountField  = 2

	// MaxSummaryEntries is the largest number of (stream key, shard) pairs
	// a single beacon can index.
	MaxSummaryEntries = 1<<16 - 1
)

// SummaryEntry is the running state of one (stream key, shard) pair at a
// beacon's offset: the highest sequence number and timestamp of any frame
// preceding the beacon.
type SummaryEntry struct {
	StreamKey    string
	ShardID      uint64
	MaxSequence  uint64
	MaxTimestamp time.Time
}

// Beacon is a periodic index record interleaved with frames at exact
// multiples of the beacon interval.
//
// layout:
// [1 tag][8 file offset][2 entry count][entries][8 checksum]
// entry: [2 key length][key][8 shard][8 max sequence][8 max timestamp ms]
//
// FileOffset is the absolute offset the beacon itself was written at. a
// decoded beacon whose FileOffset disagrees with the read position is a
// misaligned read, not an index record.
type Beacon struct {
	FileOffset uint64
	Summary    []SummaryEntry
}

// Size returns the encoded byte size of the beacon.
func (b Beacon) Size() int {
	size := lengthOfTagField + lengthOfOffsetField + lengthOfCountField + lengthOfChecksumField
	for _, entry := range b.Summary {
		size += lengthOfKeyLengthField + len(entry.StreamKey) +
			lengthOfShardField + lengthOfSequenceField + lengthOfTimestampField
	}
	return size
}

// Marshal encodes the beacon. entries are written sorted by stream key and
// shard so the encoding is deterministic regardless of map iteration order
// upstream. the receiver is not mutated.
func (b Beacon) Marshal() ([]byte, error) {
	if len(b.Summary) > MaxSummaryEntries {
		return nil, SummaryTooLargeErr
	}
	entries := make([]SummaryEntry, len(b.Summary))
	copy(entries, b.Summary)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StreamKey != entries[j].StreamKey {
			return entries[i].StreamKey < entries[j].StreamKey
		}
		return entries[i].ShardID < entries[j].ShardID
	})

	raw := make([]byte, 0, b.Size())
	raw = append(raw, TagBeacon)
	raw = append(raw, encodeUint64(b.FileOffset)...)
	raw = append(raw, encodeUint16(uint16(len(entries)))...)
	for _, entry := range entries {
		if len(entry.StreamKey) > MaxKeyLength {
			return nil, KeyTooLongErr
		}
		raw = append(raw, encodeUint16(uint16(len(entry.StreamKey)))...)
		raw = append(raw, entry.StreamKey...)
		raw = append(raw, encodeUint64(entry.ShardID)...)
		raw = append(raw, encodeUint64(entry.MaxSequence)...)
		raw = append(raw, encodeUint64(uint64(entry.MaxTimestamp.UnixMilli()))...)
	}
	raw = append(raw, encodeUint64(sum(raw[lengthOfTagField:]))...)
	return raw, nil
}

// Unmarshal decodes one beacon from the start of raw and returns the number
// of bytes consumed. the error contract matches Frame.Unmarshal.
func (b *Beacon) Unmarshal(_raw []byte) (int, error) {
	if len(_raw) < lengthOfTagField+lengthOfOffsetField+lengthOfCountField {
		return 0, NotEnoughBytesErr
	}
	if _raw[0] != TagBeacon {
		return 0, UnknownTagErr
	}
	fileOffset := decodeUint64(_raw[lengthOfTagField:])
	count := int(decodeUint16(_raw[lengthOfTagField+lengthOfOffsetField:]))

	cursor := lengthOfTagField + lengthOfOffsetField + lengthOfCountField
	entries := make([]SummaryEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(_raw) < cursor+lengthOfKeyLengthField {
			return 0, NotEnoughBytesErr
		}
		keyLength := int(decodeUint16(_raw[cursor:]))
		cursor += lengthOfKeyLengthField
		entryLength := keyLength + lengthOfShardField + lengthOfSequenceField + lengthOfTimestampField
		if len(_raw) < cursor+entryLength {
			return 0, NotEnoughBytesErr
		}
		entry := SummaryEntry{
			StreamKey: string(_raw[cursor : cursor+keyLength]),
		}
		cursor += keyLength
		entry.ShardID = decodeUint64(_raw[cursor:])
		cursor += lengthOfShardField
		entry.MaxSequence = decodeUint64(_raw[cursor:])
		cursor += lengthOfSequenceField
		entry.MaxTimestamp = time.UnixMilli(int64(decodeUint64(_raw[cursor:]))).UTC()
		cursor += lengthOfTimestampField
		entries = append(entries, entry)
	}

	total := cursor + lengthOfChecksumField
	if len(_raw) < total {
		return 0, NotEnoughBytesErr
	}
	if !check(_raw[lengthOfTagField:cursor], decodeUint64(_raw[cursor:])) {
		return 0, ChecksumErr
	}
	b.FileOffset = fileOffset
	b.Summary = entries
	return total, nil
}

// Entry returns the summary entry for a (stream key, shard) pair, if the
// beacon has seen that stream at all.
func (b Beacon) Entry(streamKey string, shardID uint64) (SummaryEntry, bool) {
	for _, entry := range b.Summary {
		if entry.StreamKey == streamKey && entry.ShardID == shardID {
			return entry, true
		}
	}
	return SummaryEntry{}, false
}
