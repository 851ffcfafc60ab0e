package format

import "encoding/binary"

func decodeUint16(_raw []byte) uint16 {
	return binary.BigEndian.Uint16(_raw)
}

func decodeUint32(_raw []byte) uint32 {
	return binary.BigEndian.Uint32(_raw)
}

func decodeUint64(_raw []byte) uint64 {
	return binary.BigEndian.Uint64(_raw)
}

func encodeUint16(value uint16) []byte {
	raw := make([]byte, 2)
	binary.BigEndian.PutUint16(raw, value)
	return raw
}

func encodeUint32(value uint32) []byte {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, value)
	return raw
}

func encodeUint64(value uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return raw
}
