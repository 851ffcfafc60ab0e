package format

import (
	"time"
)

// record tags. every record starts with exactly one tag byte. padding is a
// run of zero bytes from a record boundary up to the next beacon boundary.
const (
	TagPadding = byte(0x00)
	TagFrame   = byte('F')
	TagBeacon  = byte('B')
)

const (
	lengthOfTagField           = 1
	lengthOfKeyLengthField     = 2
	lengthOfShardField         = 8
	lengthOfSequenceField      = 8
	lengthOfTimestampField     = 8
	lengthOfPayloadLengthField = 4
	lengthOfChecksumField      = 8

	// MaxKeyLength is the longest stream key the frame header can carry.
	MaxKeyLength = 1<<16 - 1
)

// Tag returns the record discriminant at the start of raw without consuming
// anything. An unknown tag is reported together with the byte so callers can
// surface it as corruption.
func Tag(_raw []byte) (byte, error) {
	if len(_raw) < lengthOfTagField {
		return 0, NotEnoughBytesErr
	}
	switch _raw[0] {
	case TagPadding, TagFrame, TagBeacon:
		return _raw[0], nil
	}
	return _raw[0], UnknownTagErr
}

// Frame is the atomic unit appended to a .ss file.
//
// layout:
// [1 tag][2 key length][key][8 shard][8 sequence][8 timestamp ms][4 payload length][payload][8 checksum]
//
// the checksum is fnv-1a 64 over every byte after the tag and before the
// checksum field.
type Frame struct {
	StreamKey string
	ShardID   uint64
	Sequence  uint64
	// Timestamp has millisecond precision on disk. finer fractions are
	// dropped by Marshal.
	Timestamp time.Time
	Payload   []byte
}

// Size returns the encoded byte size of the frame.
func (f Frame) Size() int {
	return lengthOfTagField + lengthOfKeyLengthField + len(f.StreamKey) +
		lengthOfShardField + lengthOfSequenceField + lengthOfTimestampField +
		lengthOfPayloadLengthField + len(f.Payload) + lengthOfChecksumField
}

func (f Frame) Marshal() ([]byte, error) {
	if len(f.StreamKey) > MaxKeyLength {
		return nil, KeyTooLongErr
	}
	raw := make([]byte, 0, f.Size())
	raw = append(raw, TagFrame)
	raw = append(raw, encodeUint16(uint16(len(f.StreamKey)))...)
	raw = append(raw, f.StreamKey...)
	raw = append(raw, encodeUint64(f.ShardID)...)
	raw = append(raw, encodeUint64(f.Sequence)...)
	raw = append(raw, encodeUint64(uint64(f.Timestamp.UnixMilli()))...)
	raw = append(raw, encodeUint32(uint32(len(f.Payload)))...)
	raw = append(raw, f.Payload...)
	raw = append(raw, encodeUint64(sum(raw[lengthOfTagField:]))...)
	return raw, nil
}

// Unmarshal decodes one frame from the start of raw and returns the number
// of bytes consumed. NotEnoughBytesErr means raw holds a prefix of a valid
// frame and the caller should retry with more bytes. any other error means
// the bytes are not a frame.
func (f *Frame) Unmarshal(_raw []byte) (int, error) {
	if len(_raw) < lengthOfTagField+lengthOfKeyLengthField {
		return 0, NotEnoughBytesErr
	}
	if _raw[0] != TagFrame {
		return 0, UnknownTagErr
	}
	keyLength := int(decodeUint16(_raw[lengthOfTagField:]))

	fixed := lengthOfTagField + lengthOfKeyLengthField + keyLength +
		lengthOfShardField + lengthOfSequenceField + lengthOfTimestampField +
		lengthOfPayloadLengthField
	if len(_raw) < fixed {
		return 0, NotEnoughBytesErr
	}
	payloadLength := int(decodeUint32(_raw[fixed-lengthOfPayloadLengthField:]))

	total := fixed + payloadLength + lengthOfChecksumField
	if len(_raw) < total {
		return 0, NotEnoughBytesErr
	}
	if !check(_raw[lengthOfTagField:total-lengthOfChecksumField], decodeUint64(_raw[total-lengthOfChecksumField:])) {
		return 0, ChecksumErr
	}

	cursor := lengthOfTagField + lengthOfKeyLengthField
	f.StreamKey = string(_raw[cursor : cursor+keyLength])
	cursor += keyLength
	f.ShardID = decodeUint64(_raw[cursor:])
	cursor += lengthOfShardField
	f.Sequence = decodeUint64(_raw[cursor:])
	cursor += lengthOfSequenceField
	f.Timestamp = time.UnixMilli(int64(decodeUint64(_raw[cursor:]))).UTC()
	cursor += lengthOfTimestampField + lengthOfPayloadLengthField
	f.Payload = append([]byte(nil), _raw[cursor:cursor+payloadLength]...)
	return total, nil
}
