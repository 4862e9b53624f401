package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/waysome/waysome/message"
)

// ListenSocket serves the unix socket at path until ctx ends. A stale
// socket file left at path is removed first.
func (s *Server) ListenSocket(ctx context.Context, path string) error {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("server: removing stale socket %s: %w", path, err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", path, err)
	}
	defer os.Remove(path)
	s.log.Infof("listening on unix socket %s", path)
	return s.Serve(ctx, ln)
}

// Serve accepts socket connections on ln until ctx ends or Accept fails,
// and closes ln on return. Each connection
// carries a stream of CBOR transactions; every transaction producing a
// reply gets one CBOR reply, in order.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	dec := message.NewDecoder(conn)
	enc := message.NewEncoder(conn)
	for {
		var w message.WireTransaction
		if err := dec.Decode(&w); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warningf("socket: decoding transaction: %s", err)
			}
			return
		}
		reply, err := s.service.Handle(ctx, &w)
		if err != nil {
			s.log.Warningf("socket: transaction %d: %s", w.ID, err)
			return
		}
		if reply.Kind == message.ReplyNone {
			continue
		}
		if err := enc.Encode(reply); err != nil {
			s.log.Warningf("socket: writing reply %d: %s", w.ID, err)
			return
		}
	}
}
