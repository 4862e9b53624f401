package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/message"
)

// startSocket serves s on a unix socket in a temporary directory and
// returns a connected client.
func startSocket(t *testing.T, s *Server) net.Conn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waysome.sock")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		ln, err := net.Listen("unix", path)
		if err != nil {
			done <- err
			close(ready)
			return
		}
		close(ready)
		done <- s.Serve(ctx, ln)
	}()
	<-ready

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return conn
}

func TestSocket_RepliesInOrder(t *testing.T) {
	s := New(testManager)
	defer s.Stop()
	conn := startSocket(t, s)
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	enc := message.NewEncoder(conn)
	dec := message.NewDecoder(conn)

	txs := []*message.WireTransaction{
		wireTx(t, 1, message.FlagExec, pushInt(10)),
		wireTx(t, 2, message.FlagStore, pushInt(0)),
		wireTx(t, 3, message.FlagExec, message.Call("pop")),
		wireTx(t, 4, message.FlagExec, pushInt(40)),
	}
	for _, w := range txs {
		if err := enc.Encode(w); err != nil {
			t.Fatalf("encode %d: %v", w.ID, err)
		}
	}

	// The store-only transaction produces nothing on the wire.
	var replies []message.WireReply
	for range 3 {
		var r message.WireReply
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		replies = append(replies, r)
	}
	expectValue(t, &replies[0], 10)
	if replies[1].ID != 3 || replies[1].Kind != message.ReplyError || replies[1].Code != int(unix.ERANGE) {
		t.Errorf("second reply = %+v, want ERANGE error for 3", replies[1])
	}
	if replies[2].ID != 4 {
		t.Errorf("third reply id = %d, want 4", replies[2].ID)
	}
	expectValue(t, &replies[2], 40)
}

func TestSocket_GarbageClosesConnection(t *testing.T) {
	s := New(testManager)
	defer s.Stop()
	conn := startSocket(t, s)
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("server should close the connection on undecodable input")
	}
}

// failingListener fails every Accept and reports Close.
type failingListener struct {
	closed chan struct{}
	once   sync.Once
}

func (l *failingListener) Accept() (net.Conn, error) {
	return nil, errors.New("accept failed")
}

func (l *failingListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "failing", Net: "unix"}
}

func TestServe_AcceptErrorClosesListener(t *testing.T) {
	s := New(testManager)
	defer s.Stop()
	ln := &failingListener{closed: make(chan struct{})}

	err := s.Serve(context.Background(), ln)
	if err == nil {
		t.Fatal("Serve should report the accept error")
	}
	select {
	case <-ln.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("listener not closed after Serve returned")
	}
}

func TestListenSocket_RemovesStaleSocket(t *testing.T) {
	s := New(testManager)
	defer s.Stop()
	path := filepath.Join(t.TempDir(), "stale.sock")

	stale, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Keep the file behind, as a crashed daemon would.
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = stale.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenSocket(ctx, path) }()

	var conn net.Conn
	for range 50 {
		if conn, err = net.Dial("unix", path); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if conn == nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenSocket: %v", err)
	}
}
