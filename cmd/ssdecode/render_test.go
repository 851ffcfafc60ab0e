package main

import (
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/scrogson/sea-streamer/format"
)

func testFrame() format.Frame {
	return format.Frame{
		StreamKey: "orders",
		ShardID:   0,
		Sequence:  7,
		Timestamp: time.Date(2024, 5, 2, 9, 30, 0, int(250*time.Millisecond), time.UTC),
		Payload:   []byte("hello"),
	}
}

func TestLogRendererFrame(t *testing.T) {
	is := is.New(t)

	out := strings.Builder{}
	render, err := newRenderer(&out, "log")
	is.NoErr(err)

	is.NoErr(render.Frame(testFrame()))
	is.Equal(out.String(), "[2024-05-02T09:30:00.250Z | orders | 0 | 7] hello\n")
}

func TestLogRendererBeacon(t *testing.T) {
	is := is.New(t)

	out := strings.Builder{}
	render, err := newRenderer(&out, "log")
	is.NoErr(err)

	beacon := format.Beacon{
		FileOffset: 1024,
		Summary: []format.SummaryEntry{
			{StreamKey: "orders", ShardID: 0, MaxSequence: 7},
			{StreamKey: "alerts", ShardID: 0, MaxSequence: 2},
		},
	}
	is.NoErr(render.Beacon(beacon))
	is.Equal(out.String(), "# beacon offset=1024 streams=2\n")
}

func TestNdjsonRendererFrame(t *testing.T) {
	is := is.New(t)

	out := strings.Builder{}
	render, err := newRenderer(&out, "ndjson")
	is.NoErr(err)

	is.NoErr(render.Frame(testFrame()))
	is.Equal(out.String(), `{"header":{"stream_key":"orders","shard_id":0,"sequence":7,"timestamp":"2024-05-02T09:30:00.250Z"},"payload":"hello"}`+"\n")
}

func TestNdjsonRendererBinaryPayload(t *testing.T) {
	is := is.New(t)

	out := strings.Builder{}
	render, err := newRenderer(&out, "ndjson")
	is.NoErr(err)

	frame := testFrame()
	frame.Payload = []byte{0xff, 0xfe, 0x00}
	is.NoErr(render.Frame(frame))
	is.True(strings.Contains(out.String(), `"encoding":"base64"`))
	is.True(strings.Contains(out.String(), `"payload":"//4A"`))
}

func TestNdjsonRendererSkipsBeacons(t *testing.T) {
	is := is.New(t)

	out := strings.Builder{}
	render, err := newRenderer(&out, "ndjson")
	is.NoErr(err)

	is.NoErr(render.Beacon(format.Beacon{FileOffset: 512}))
	is.Equal(out.String(), "")
}

func TestNewRendererUnknown(t *testing.T) {
	is := is.New(t)

	_, err := newRenderer(&strings.Builder{}, "xml")
	is.True(err != nil)
}
