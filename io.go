package streamer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scrogson/sea-streamer/format"
)

const chunkSize = 32 * 1024

// chunkReader reads windows of a file for record decoding. the window grows
// on demand so records larger than the initial chunk still decode in one
// piece.
type chunkReader struct {
	file *os.File
	buf  []byte
}

func newChunkReader(_file *os.File) *chunkReader {
	return &chunkReader{file: _file, buf: make([]byte, chunkSize)}
}

func (c *chunkReader) load(_offset int64) ([]byte, error) {
	n, err := c.file.ReadAt(c.buf, _offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("can't read log file: %w", err)
	}
	return c.buf[:n], nil
}

// decodeAt decodes the record at offset with the given unmarshal func,
// widening the window until the record either decodes, fails, or the file
// genuinely runs out of bytes. a NotEnoughBytesErr returned from here means
// the file itself ends mid-record.
func (c *chunkReader) decodeAt(_offset int64, _unmarshal func([]byte) (int, error)) (int, error) {
	for {
		raw, err := c.load(_offset)
		if err != nil {
			return 0, err
		}
		n, err := _unmarshal(raw)
		if errors.Is(err, format.NotEnoughBytesErr) && len(raw) == len(c.buf) {
			c.buf = make([]byte, len(c.buf)*2)
			continue
		}
		return n, err
	}
}

// available reports how many bytes exist at offset without decoding them.
func (c *chunkReader) available(_offset int64) (int64, error) {
	info, err := c.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("can't stat log file: %w", err)
	}
	if info.Size() <= _offset {
		return 0, nil
	}
	return info.Size() - _offset, nil
}
