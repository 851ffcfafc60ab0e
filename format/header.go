package format

// file header layout:
// [2 magic][1 version][1 reserved][4 beacon interval][8 reserved]

const (
	headerMagicLength    = 2
	headerVersionLength  = 1
	headerReservedLength = 1
	headerIntervalLength = 4
	headerPaddingLength  = 8

	// HeaderLength is the byte size of the file header at offset zero.
	HeaderLength = headerMagicLength + headerVersionLength + headerReservedLength +
		headerIntervalLength + headerPaddingLength

	// Version is the only file format version this package can read and write.
	Version = uint8(1)

	// DefaultBeaconInterval is the beacon spacing used when the writer
	// config leaves it unset.
	DefaultBeaconInterval = uint32(1024)

	// MinBeaconInterval bounds the interval from below so a beacon always
	// fits between two boundaries and the header never overlaps the first
	// boundary.
	MinBeaconInterval = uint32(128)
)

var magic = [headerMagicLength]byte{'S', 'S'}

// Header describes a .ss file. The beacon interval is fixed at file creation
// and readers learn it from here, not from configuration.
type Header struct {
	Version        uint8
	BeaconInterval uint32
}

func (h Header) Marshal() ([]byte, error) {
	if h.BeaconInterval < MinBeaconInterval {
		return nil, BeaconIntervalErr
	}
	raw := make([]byte, 0, HeaderLength)
	raw = append(raw, magic[:]...)
	raw = append(raw, h.Version)
	raw = append(raw, 0)
	raw = append(raw, encodeUint32(h.BeaconInterval)...)
	raw = append(raw, make([]byte, headerPaddingLength)...)
	return raw, nil
}

func (h *Header) Unmarshal(_raw []byte) error {
	if len(_raw) < HeaderLength {
		return NotEnoughBytesErr
	}
	if _raw[0] != magic[0] || _raw[1] != magic[1] {
		return BadMagicErr
	}
	h.Version = _raw[headerMagicLength]
	if h.Version != Version {
		return VersionErr
	}
	h.BeaconInterval = decodeUint32(_raw[headerMagicLength+headerVersionLength+headerReservedLength:])
	if h.BeaconInterval < MinBeaconInterval {
		return BeaconIntervalErr
	}
	return nil
}
