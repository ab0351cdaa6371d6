package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Server serves a World over websocket. Requests from all connections are
// applied one at a time; updates are broadcast to every connection.
type Server struct {
	world    *World
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*serverConn]struct{}
	closed bool
}

type serverConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *serverConn) write(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(m)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer returns a Server for w.
func NewServer(w *World, opts ...ServerOption) *Server {
	s := &Server{
		world:  w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*serverConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler upgrades the request and serves the connection until it closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.logger.Warn("upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sc := &serverConn{conn: conn}
		if err := s.greet(sc); err != nil {
			s.logger.Warn("greeting failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.logger.Info("client connected", "remote", r.RemoteAddr)
		defer func() {
			s.mu.Lock()
			delete(s.conns, sc)
			s.mu.Unlock()
			s.logger.Info("client disconnected", "remote", r.RemoteAddr)
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			m, err := DecodeMessage(raw)
			if err != nil || m.Type != TypeRequest {
				ack := Message{Type: TypeAck, ID: m.ID, Kind: KindProtocol, Error: "expected REQUEST"}
				if err != nil {
					ack.Error = err.Error()
				}
				if werr := sc.write(ack); werr != nil {
					return
				}
				continue
			}
			if err := s.handle(ctx, sc, m); err != nil {
				return
			}
		}
	}
}

// Close sends a going-away close frame to every connection and closes
// it. Connections arriving afterwards are refused. http.Server.Shutdown
// does not reach hijacked websocket connections, so callers shutting
// down an http.Server also call Close.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	var errs []error
	for sc := range s.conns {
		_ = sc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		if err := sc.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		delete(s.conns, sc)
	}
	return errors.Join(errs...)
}

// greet sends HELLO and the full snapshot, then registers the connection
// for broadcasts.
func (s *Server) greet(sc *serverConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("server closed")
	}
	tick := s.world.CurrentTick()
	if err := sc.write(Message{Type: TypeHello, ProtocolVersion: ProtocolVersion, Tick: tick}); err != nil {
		return err
	}
	if snap := s.world.Snapshot(); len(snap) > 0 {
		if err := sc.write(Message{Type: TypeUpdate, Tick: tick, Updates: snap}); err != nil {
			return err
		}
	}
	s.conns[sc] = struct{}{}
	return nil
}

func (s *Server) handle(ctx context.Context, sc *serverConn, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick, opErr := s.apply(ctx, m)
	s.broadcastLocked()

	ack := Message{Type: TypeAck, ID: m.ID, Tick: tick}
	if opErr != nil {
		ack.Kind = KindRejected
		var ge *GatewayError
		if errors.As(opErr, &ge) {
			ack.Kind = ge.Kind
		}
		ack.Error = opErr.Error()
		s.logger.Debug("request failed", "op", m.Op, "id", m.ID, "error", opErr)
	}
	return sc.write(ack)
}

func (s *Server) apply(ctx context.Context, m Message) (int64, error) {
	w := s.world
	switch m.Op {
	case OpFreeze:
		return w.Freeze(ctx)
	case OpUnfreeze:
		err := w.Unfreeze(ctx)
		return w.CurrentTick(), err
	case OpStep:
		tick, err := w.Step(ctx, m.N)
		if err != nil {
			return w.CurrentTick(), err
		}
		return tick, nil
	case OpSetBlock:
		if m.Pos == nil {
			return w.CurrentTick(), &GatewayError{Op: m.Op, Kind: KindProtocol, Err: errors.New("missing pos")}
		}
		return w.CurrentTick(), w.SetBlock(ctx, *m.Pos, m.Block)
	case OpFill:
		if m.Region == nil {
			return w.CurrentTick(), &GatewayError{Op: m.Op, Kind: KindProtocol, Err: errors.New("missing region")}
		}
		return w.CurrentTick(), w.FillRegion(ctx, *m.Region, m.Block)
	case OpSync:
		return w.CurrentTick(), w.Sync(ctx)
	default:
		return w.CurrentTick(), &GatewayError{Op: m.Op, Kind: KindProtocol, Err: fmt.Errorf("unknown op %q", m.Op)}
	}
}

func (s *Server) broadcastLocked() {
	changes := s.world.Changes()
	if len(changes) == 0 {
		return
	}
	msg := Message{Type: TypeUpdate, Tick: s.world.CurrentTick(), Updates: changes}
	for sc := range s.conns {
		if err := sc.write(msg); err != nil {
			s.logger.Debug("broadcast failed", "error", err)
		}
	}
}

// RunClock advances the world every interval while it is unfrozen and
// broadcasts the resulting changes. It returns when ctx ends.
func (s *Server) RunClock(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			if s.world.Advance() {
				s.broadcastLocked()
			}
			s.mu.Unlock()
		}
	}
}
