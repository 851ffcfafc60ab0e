package streamer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrogson/sea-streamer/format"
)

// Streamer multiplexes producers and consumer groups over one log file. it
// owns at most one Writer (opened lazily by the first producer) and one
// Reader per consumer group. members of a group split the group's stream
// round-robin; distinct groups each observe every frame.
type Streamer struct {
	path   string
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
	mu     sync.Mutex
	writer *Writer
	groups map[groupKey]*group
	closed bool
}

type groupKey struct {
	streamKey string
	name      string
}

// Connect prepares a streamer for the given log file. no file I/O happens
// until the first producer or subscription.
func Connect(path string, config Config) (*Streamer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	return &Streamer{
		path:   path,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		eg:     eg,
		groups: make(map[groupKey]*group),
	}, nil
}

// Producer returns an append handle for a stream key. all producers of a
// streamer share the single writer; the core writes shard 0 only.
func (s *Streamer) Producer(streamKey string) (*Producer, error) {
	if streamKey == "" {
		return nil, KeyIsEmptyErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ClosedErr
	}
	if s.writer == nil {
		writer, err := OpenWriter(s.path, s.config)
		if err != nil {
			return nil, err
		}
		s.writer = writer
	}
	return &Producer{writer: s.writer, streamKey: streamKey}, nil
}

// Producer appends messages for one stream key.
type Producer struct {
	writer    *Writer
	streamKey string
}

// Send appends the payload and returns the assigned sequence number.
func (p *Producer) Send(payload []byte) (uint64, error) {
	return p.writer.Append(p.streamKey, 0, payload)
}

// StreamKey returns the stream this producer appends to.
func (p *Producer) StreamKey() string {
	return p.streamKey
}

// Subscribe registers a consumer. the first subscriber of a (stream key,
// group) pair fixes the group's mode and start position and starts its
// dispatch loop; later subscribers join the rotation.
func (s *Streamer) Subscribe(config SubscribeConfig) (*Consumer, error) {
	if config.StreamKey == "" {
		return nil, KeyIsEmptyErr
	}
	if config.Group == "" {
		return nil, GroupIsEmptyErr
	}
	config = config.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ClosedErr
	}

	gk := groupKey{streamKey: config.StreamKey, name: config.Group}
	consumer := &Consumer{
		streamKey: config.StreamKey,
		group:     config.Group,
		ch:        make(chan format.Frame, config.Buffer),
		closed:    make(chan struct{}),
	}

	if g, ok := s.groups[gk]; ok && g.join(consumer) {
		return consumer, nil
	}

	reader, err := OpenReader(s.path, ReaderConfig{Mode: config.Mode, Start: config.Start})
	if err != nil {
		return nil, err
	}
	g := &group{key: gk, members: []*Consumer{consumer}}
	consumer.g = g
	gctx, gcancel := context.WithCancel(s.ctx)
	g.cancel = gcancel
	s.groups[gk] = g
	s.eg.Go(func() error {
		defer reader.Close()
		err := s.dispatch(gctx, g, reader, config.PollInterval)
		s.removeGroup(gk, g)
		reason := err
		if reason == nil && gctx.Err() != nil {
			reason = GroupClosedErr
		}
		g.finish(reason)
		return err
	})
	return consumer, nil
}

// dispatch is one consumer group's delivery loop: read forward, hand each
// matching frame to exactly one member, wait out the live tail.
func (s *Streamer) dispatch(ctx context.Context, g *group, reader *Reader, pollInterval time.Duration) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := reader.Next()
		switch {
		case err == nil:
			if frame.StreamKey != g.key.streamKey {
				continue
			}
			if !g.deliver(ctx, frame) {
				return nil
			}
		case errors.Is(err, PendingErr):
			s.waitAppend(ctx, pollInterval)
		case errors.Is(err, EndOfLogErr):
			return nil
		default:
			return err
		}
	}
}

// waitAppend blocks until the local writer signals an append, the poll
// interval elapses (covers writers in other processes) or ctx is done.
func (s *Streamer) waitAppend(ctx context.Context, pollInterval time.Duration) {
	s.mu.Lock()
	writer := s.writer
	s.mu.Unlock()
	if writer != nil && !writer.IsClosed() {
		writer.WaitForAppend(pollInterval)
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(pollInterval):
	}
}

func (s *Streamer) removeGroup(gk groupKey, g *group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[gk] == g {
		delete(s.groups, gk)
	}
}

// Close stops all dispatch loops, waits for them and closes the writer.
func (s *Streamer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ClosedErr
	}
	s.closed = true
	writer := s.writer
	s.mu.Unlock()

	s.cancel()
	err := s.eg.Wait()
	if writer != nil {
		if cerr := writer.Close(); err == nil && !errors.Is(cerr, ClosedErr) {
			err = cerr
		}
	}
	return err
}

// group is the shared state of one (stream key, consumer group) pair.
type group struct {
	key      groupKey
	cancel   context.CancelFunc
	mu       sync.Mutex
	members  []*Consumer
	next     int
	err      error
	finished bool
}

// join adds a member to a running group. returns false if the group's
// dispatch loop already ended; the caller then starts a fresh group.
func (g *group) join(c *Consumer) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return false
	}
	c.g = g
	g.members = append(g.members, c)
	return true
}

// deliver hands the frame to the next member in rotation. a member that
// closed while the send was blocked is skipped. returns false when the
// group has no members left or ctx ended.
func (g *group) deliver(ctx context.Context, frame format.Frame) bool {
	for {
		g.mu.Lock()
		if len(g.members) == 0 {
			g.mu.Unlock()
			return false
		}
		c := g.members[g.next%len(g.members)]
		g.next++
		g.mu.Unlock()

		select {
		case c.ch <- frame:
			return true
		case <-c.closed:
			// member left mid-send, rotate on
		case <-ctx.Done():
			return false
		}
	}
}

// finish ends all member channels. err, if any, is surfaced by each
// member's Next after its channel drains.
func (g *group) finish(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return
	}
	g.finished = true
	g.err = err
	for _, c := range g.members {
		close(c.ch)
	}
	g.members = nil
}

// Consumer receives the frames assigned to it by its group's rotation.
type Consumer struct {
	streamKey string
	group     string
	ch        chan format.Frame
	g         *group
	closeOnce sync.Once
	closed    chan struct{}
}

// Next returns the next frame assigned to this consumer. once the group's
// dispatch loop ends it returns the loop's error: EndOfLogErr for a replay
// group that ran to completion, GroupClosedErr after a shutdown.
func (c *Consumer) Next(ctx context.Context) (format.Frame, error) {
	select {
	case <-ctx.Done():
		return format.Frame{}, ctx.Err()
	case frame, ok := <-c.ch:
		if !ok {
			return format.Frame{}, c.endErr()
		}
		return frame, nil
	}
}

// Messages exposes the consumer's delivery channel. it is closed when the
// group's dispatch loop ends.
func (c *Consumer) Messages() <-chan format.Frame {
	return c.ch
}

func (c *Consumer) endErr() error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if c.g.err != nil {
		return c.g.err
	}
	return EndOfLogErr
}

// StreamKey returns the stream this consumer subscribed to.
func (c *Consumer) StreamKey() string { return c.streamKey }

// Group returns the consumer group name.
func (c *Consumer) Group() string { return c.group }

// Close leaves the group. the last member leaving stops the group's
// dispatch loop.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		g := c.g
		g.mu.Lock()
		for i, member := range g.members {
			if member == c {
				g.members = append(g.members[:i], g.members[i+1:]...)
				break
			}
		}
		empty := len(g.members) == 0 && !g.finished
		g.mu.Unlock()
		if empty && g.cancel != nil {
			g.cancel()
		}
	})
}
