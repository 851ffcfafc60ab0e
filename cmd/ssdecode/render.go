package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/scrogson/sea-streamer/format"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type renderer interface {
	Frame(format.Frame) error
	Beacon(format.Beacon) error
}

func newRenderer(out io.Writer, name string) (renderer, error) {
	switch name {
	case "log":
		return &logRenderer{out: out}, nil
	case "ndjson":
		return &ndjsonRenderer{enc: json.NewEncoder(out)}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", name)
}

type logRenderer struct {
	out io.Writer
}

func (r *logRenderer) Frame(frame format.Frame) error {
	_, err := fmt.Fprintf(r.out, "[%s | %s | %d | %d] %s\n",
		frame.Timestamp.Format(timestampLayout),
		frame.StreamKey, frame.ShardID, frame.Sequence, frame.Payload)
	return err
}

func (r *logRenderer) Beacon(beacon format.Beacon) error {
	_, err := fmt.Fprintf(r.out, "# beacon offset=%d streams=%d\n",
		beacon.FileOffset, len(beacon.Summary))
	return err
}

type frameHeaderJSON struct {
	StreamKey string `json:"stream_key"`
	ShardID   uint64 `json:"shard_id"`
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
}

type frameJSON struct {
	Header   frameHeaderJSON `json:"header"`
	Payload  string          `json:"payload"`
	Encoding string          `json:"encoding,omitempty"`
}

type ndjsonRenderer struct {
	enc *json.Encoder
}

func (r *ndjsonRenderer) Frame(frame format.Frame) error {
	line := frameJSON{
		Header: frameHeaderJSON{
			StreamKey: frame.StreamKey,
			ShardID:   frame.ShardID,
			Sequence:  frame.Sequence,
			Timestamp: frame.Timestamp.Format(timestampLayout),
		},
	}
	if utf8.Valid(frame.Payload) {
		line.Payload = string(frame.Payload)
	} else {
		line.Payload = base64.StdEncoding.EncodeToString(frame.Payload)
		line.Encoding = "base64"
	}
	return r.enc.Encode(line)
}

func (r *ndjsonRenderer) Beacon(format.Beacon) error {
	// index records are not data
	return nil
}
