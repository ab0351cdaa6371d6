package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/flint/internal/spec"
)

// Client is a Gateway speaking the websocket protocol. Each call sends a
// REQUEST and blocks until its ACK arrives or ctx ends. A reader goroutine
// applies pushed UPDATEs to a local snapshot, which the Reader methods
// consult without a round trip.
type Client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	blocks  map[spec.Pos]BlockState
	tick    int64
	readErr error

	done chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Dial connects to url, waits for the server's HELLO and snapshot, and
// returns a ready Client.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &GatewayError{Op: "dial", Kind: KindDisconnected, Err: err}
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, &GatewayError{Op: "dial", Kind: KindDisconnected, Err: err}
	}
	hello, err := DecodeMessage(raw)
	if err != nil || hello.Type != TypeHello {
		_ = conn.Close()
		return nil, &GatewayError{Op: "dial", Kind: KindProtocol, Err: fmt.Errorf("expected HELLO, got %q", raw)}
	}
	if hello.ProtocolVersion != ProtocolVersion {
		_ = conn.Close()
		return nil, &GatewayError{Op: "dial", Kind: KindProtocol, Err: fmt.Errorf("unsupported protocol version %q", hello.ProtocolVersion)}
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending: make(map[uint64]chan Message),
		blocks:  make(map[spec.Pos]BlockState),
		tick:    hello.Tick,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()

	// The server sends its snapshot right after HELLO; a sync round trip
	// guarantees it has been applied.
	if err := c.Sync(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the connection and waits for the reader to exit.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		m, err := DecodeMessage(raw)
		if err != nil {
			c.logger.Warn("undecodable message", "error", err)
			continue
		}
		switch m.Type {
		case TypeUpdate:
			c.applyUpdate(m)
		case TypeAck:
			c.mu.Lock()
			ch, ok := c.pending[m.ID]
			delete(c.pending, m.ID)
			c.mu.Unlock()
			if !ok {
				c.logger.Warn("ack for unknown request", "id", m.ID)
				continue
			}
			ch <- m
		default:
			c.logger.Debug("ignoring message", "type", m.Type)
		}
	}
}

func (c *Client) applyUpdate(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = m.Tick
	for _, u := range m.Updates {
		bs, err := ParseBlockState(u.Block)
		if err != nil {
			c.logger.Warn("bad block in update", "pos", u.Pos.String(), "block", u.Block, "error", err)
			continue
		}
		if bs.IsAir() {
			delete(c.blocks, u.Pos)
			continue
		}
		c.blocks[u.Pos] = bs
	}
}

// fail records the read error and releases every waiter.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) call(ctx context.Context, req Message) (Message, error) {
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return Message{}, &GatewayError{Op: req.Op, Kind: KindDisconnected, Err: err}
	}
	c.nextID++
	req.ID = c.nextID
	req.Type = TypeRequest
	ch := make(chan Message, 1)
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return Message{}, &GatewayError{Op: req.Op, Kind: KindDisconnected, Err: err}
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			return Message{}, &GatewayError{Op: req.Op, Kind: KindDisconnected, Err: err}
		}
		if ack.Error != "" {
			kind := ack.Kind
			if kind == "" {
				kind = KindRejected
			}
			return ack, &GatewayError{Op: req.Op, Kind: kind, Err: errors.New(ack.Error)}
		}
		return ack, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Message{}, fromContext(req.Op, ctx.Err())
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Freeze(ctx context.Context) (int64, error) {
	ack, err := c.call(ctx, Message{Op: OpFreeze})
	return ack.Tick, err
}

func (c *Client) Unfreeze(ctx context.Context) error {
	_, err := c.call(ctx, Message{Op: OpUnfreeze})
	return err
}

func (c *Client) Step(ctx context.Context, n int) (int64, error) {
	ack, err := c.call(ctx, Message{Op: OpStep, N: n})
	return ack.Tick, err
}

func (c *Client) SetBlock(ctx context.Context, pos spec.Pos, block string) error {
	_, err := c.call(ctx, Message{Op: OpSetBlock, Pos: &pos, Block: block})
	return err
}

func (c *Client) FillRegion(ctx context.Context, region spec.Region, block string) error {
	_, err := c.call(ctx, Message{Op: OpFill, Region: &region, Block: block})
	return err
}

func (c *Client) Sync(ctx context.Context) error {
	_, err := c.call(ctx, Message{Op: OpSync})
	return err
}

func (c *Client) QueryBlock(ctx context.Context, pos spec.Pos) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fromContext("query", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bs, ok := c.blocks[pos]
	if !ok {
		return spec.Air, nil
	}
	return bs.ID, nil
}

func (c *Client) QueryBlockState(ctx context.Context, pos spec.Pos, property string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fromContext("query", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.blocks[pos].Prop(property)
	return v, ok, nil
}

// LastTick returns the tick reported by the most recent UPDATE or HELLO.
func (c *Client) LastTick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}
