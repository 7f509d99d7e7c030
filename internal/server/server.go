// Package server owns the TCP front of the blackjack service: the listener,
// the per-connection reader goroutines, and the single event loop that runs
// all game state.
package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/blackjack-server/internal/config"
	"github.com/cyberinferno/blackjack-server/internal/game"
	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

const writeTimeout = 2 * time.Second

// Server accepts connections and funnels everything they produce into one
// event loop goroutine. That loop is the only goroutine that touches the
// lobby, the rooms, and the frame decoders, so the game layer needs no
// synchronization of its own.
type Server struct {
	cfg config.Config
	log zerolog.Logger

	listener net.Listener
	running  atomic.Bool
	nextID   atomic.Uint32

	events chan event
	conns  map[uint32]*connection
	lobby  *game.Lobby
}

// New wires a server from its configuration. Call Start to bind the listener
// and Run to serve.
func New(cfg config.Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log.With().Str("component", "server").Logger(),
		events: make(chan event, 4096),
		conns:  make(map[uint32]*connection),
	}

	s.lobby = game.NewLobby(s, log, game.Options{
		Rooms:        cfg.Rooms,
		FaultLimit:   cfg.FaultLimit,
		ReclaimTTL:   cfg.ReclaimTTL,
		TurnTimeout:  cfg.TurnTimeout,
		PingAfter:    cfg.PingAfter,
		TimeoutAfter: cfg.TimeoutAfter,
	})

	return s
}

// Start binds the listener. It is safe to call only when the server is not
// already running.
func (s *Server) Start() error {
	if s.Running() {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.listener = ln
	s.running.Store(true)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("server started")

	return nil
}

// Addr returns the bound listen address. Valid after Start; with port 0 the
// kernel-assigned port is visible here.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Running reports whether the server is between Start and shutdown.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Run serves until ctx is cancelled, then closes the listener and every live
// connection.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		s.running.Store(false)
		_ = s.listener.Close()
		return nil
	})
	g.Go(s.acceptLoop)
	g.Go(func() error {
		return s.eventLoop(ctx)
	})

	err := g.Wait()

	for id, c := range s.conns {
		_ = c.conn.Close()
		delete(s.conns, id)
	}
	s.log.Info().Msg("server stopped")

	return err
}

// acceptLoop hands every accepted connection to the event loop. It exits when
// the listener is closed during shutdown.
func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.Running() {
				return nil
			}
			s.log.Error().Err(err).Msg("accept error")
			continue
		}

		s.events <- event{kind: eventAccept, conn: conn}
	}
}

// eventLoop is the single owner of all game state. Connection events, the
// room tick, and the liveness sweep are all serialized here.
func (s *Server) eventLoop(ctx context.Context) error {
	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-s.events:
			s.handleEvent(ev)

		case <-tick.C:
			s.lobby.AdvanceRooms()
			s.lobby.Update()

		case <-sweep.C:
			s.lobby.SweepLiveness()
			s.lobby.Update()
		}
	}
}

func (s *Server) handleEvent(ev event) {
	switch ev.kind {
	case eventAccept:
		s.handleAccept(ev.conn)

	case eventData:
		s.handleData(ev.id, ev.data)

	case eventClosed:
		s.teardown(ev.id)
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	if !s.Running() {
		_ = conn.Close()
		return
	}

	if len(s.conns) >= s.cfg.MaxSessions {
		s.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("session limit reached, refusing connection")
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, _ = conn.Write(protocol.Encode(protocol.CmdConnFail, "Server is full"))
		_ = conn.Close()
		return
	}

	id := s.nextID.Add(1)
	c := &connection{id: id, conn: conn, events: s.events}
	s.conns[id] = c
	go c.readLoop()

	s.log.Info().Uint32("session", id).Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
	s.lobby.AddPlayer(id)
}

func (s *Server) handleData(id uint32, chunk []byte) {
	c, ok := s.conns[id]
	if !ok {
		return
	}

	s.lobby.Touch(id)

	for _, line := range c.decoder.Push(chunk) {
		// The session may have been dropped by an earlier line in this chunk.
		if _, ok := s.conns[id]; !ok {
			return
		}

		msg := protocol.Parse(line)
		if !msg.Valid {
			s.log.Debug().Uint32("session", id).Str("line", line).Msg("malformed frame")
			s.lobby.HandleInvalidFrame(id)
			continue
		}

		switch msg.Command {
		case protocol.CmdPing:
			s.Send(id, protocol.CmdAckPing)
		case protocol.CmdPong:
			// Heartbeat reply; the Touch above is all it is for.
		default:
			s.lobby.Handle(id, msg)
		}
	}
}

// teardown closes and forgets the connection and tells the lobby. Idempotent:
// both the reader goroutine and Drop funnel through here.
func (s *Server) teardown(id uint32) {
	c, ok := s.conns[id]
	if !ok {
		return
	}

	delete(s.conns, id)
	_ = c.conn.Close()
	s.log.Info().Uint32("session", id).Msg("connection closed")
	s.lobby.HandleDisconnect(id)
}

// Send implements game.Sender. A failed write is only logged; the reader
// goroutine will observe the broken socket and emit the teardown event.
func (s *Server) Send(sessionID uint32, cmd protocol.Command, args ...string) {
	c, ok := s.conns[sessionID]
	if !ok {
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(protocol.Encode(cmd, args...)); err != nil {
		s.log.Warn().Uint32("session", sessionID).Err(err).Msg("write failed")
	}
}

// Drop implements game.Sender.
func (s *Server) Drop(sessionID uint32) {
	s.teardown(sessionID)
}
