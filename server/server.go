// Package server exposes the action manager to clients, over Connect
// (HTTP) with a CBOR codec and over a unix socket carrying a CBOR stream.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/waysome/waysome/action"
	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
)

// Server is the waysome action server wrapping a manager.
type Server struct {
	worker  *Worker
	service *ActionService
	codec   *message.Codec
	objects *object.Registry
	mux     *http.ServeMux
	log     commonlog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	workers int
	queue   int
	timeout time.Duration
	objects *object.Registry
}

// WithWorkers sets the number of transactions run concurrently.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithQueue sets how many transactions may wait for a worker.
func WithQueue(n int) ServerOption {
	return func(c *serverConfig) { c.queue = n }
}

// WithTimeout bounds each transaction run. Zero disables the bound.
func WithTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.timeout = d }
}

// WithObjectRegistry sets the registry resolving object ids on the wire.
// If not set, the server creates its own.
func WithObjectRegistry(r *object.Registry) ServerOption {
	return func(c *serverConfig) { c.objects = r }
}

// New creates a Server wrapping the given manager.
func New(m *action.Manager, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		workers: 4,
		queue:   64,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.objects == nil {
		cfg.objects = object.NewRegistry()
	}

	worker := NewWorker(m, cfg.workers, cfg.queue)
	codec := message.NewCodec(cfg.objects)

	s := &Server{
		worker:  worker,
		service: NewActionService(worker, codec, cfg.timeout),
		codec:   codec,
		objects: cfg.objects,
		mux:     http.NewServeMux(),
		log:     commonlog.GetLogger("waysome.server"),
		conns:   make(map[net.Conn]struct{}),
	}

	path, handler := NewActionServiceHandler(s.service)
	s.mux.Handle(path, handler)

	return s
}

// Handler returns the HTTP handler serving the Connect procedures.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Service returns the action service shared by both transports.
func (s *Server) Service() *ActionService {
	return s.service
}

// Codec returns the wire codec of the server.
func (s *Server) Codec() *message.Codec {
	return s.codec
}

// ListenAndServe serves Connect on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	s.log.Infof("listening on %s (Connect: http://%s%s)", addr, addr, ProcessProcedure)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes open socket connections and shuts down the worker.
func (s *Server) Stop() {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.worker.Stop()
	s.objects.Clear()
}
