package streamer

import (
	"time"

	"github.com/scrogson/sea-streamer/format"
)

// Mode controls how a reader relates to the live tail of the file.
type Mode int

const (
	// ModeReplay bounds the reader to the file length observed at open
	// time. reaching that point yields EndOfLogErr, terminally.
	ModeReplay Mode = iota
	// ModeLive starts the cursor at the end of the file. PendingErr is
	// routine; most of the time nothing new has been appended.
	ModeLive
	// ModeLiveReplay starts at a historical position and transitions
	// one-way into live behavior once the cursor catches up with the file
	// length observed at open.
	ModeLiveReplay
)

func (m Mode) String() string {
	switch m {
	case ModeReplay:
		return "replay"
	case ModeLive:
		return "live"
	case ModeLiveReplay:
		return "live-replay"
	default:
		return "unknown"
	}
}

// Config for a Writer or a Streamer.
type Config struct {
	// BeaconIntervalBytes is the spacing of beacon index records. beacons
	// are placed at exact multiples of this interval. only consulted when
	// the file is created; an existing file keeps its own interval.
	// default = format.DefaultBeaconInterval
	BeaconIntervalBytes uint32
}

// Validate validates the config
func (c Config) Validate() error {
	if c.BeaconIntervalBytes != 0 && c.BeaconIntervalBytes < format.MinBeaconInterval {
		return format.BeaconIntervalErr
	}
	return nil
}

func (c Config) interval() uint32 {
	if c.BeaconIntervalBytes == 0 {
		return format.DefaultBeaconInterval
	}
	return c.BeaconIntervalBytes
}

// ReaderConfig for a Reader.
type ReaderConfig struct {
	Mode Mode

	// Start is the position applied at open. the zero value falls back to
	// the mode default: Beginning for replay modes, End for live mode.
	Start Target

	// OnBeacon, when set, is invoked for every beacon the reader consumes
	// while scanning. beacons are otherwise invisible to callers.
	OnBeacon func(format.Beacon)
}

// SubscribeConfig for Streamer.Subscribe.
type SubscribeConfig struct {
	StreamKey string
	// Group names the consumer group. members of one group split the
	// stream round-robin; distinct groups each receive every frame.
	Group string
	// Mode and Start apply to the group's shared reader and are fixed by
	// the first subscriber of the group.
	Mode  Mode
	Start Target
	// PollInterval caps how long a group dispatch loop waits for an
	// append notification before re-polling the file. covers writers in
	// other processes. default = 50ms
	PollInterval time.Duration
	// Buffer is the consumer channel capacity. default = 16
	Buffer int
}

func (c SubscribeConfig) withDefaults() SubscribeConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.Buffer <= 0 {
		c.Buffer = 16
	}
	return c
}
