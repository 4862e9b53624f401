package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/waysome/waysome/action"
	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

// ProcessProcedure is the Connect procedure path of ActionService.Process.
const ProcessProcedure = "/waysome.v1.ActionService/Process"

// Error reply descriptions produced by the transport layer.
const (
	DescDecode   = "Could not decode transaction"
	DescInternal = "Internal error"
)

// ActionService feeds wire transactions to the manager through the worker
// and serializes the replies. Both transports go through Handle.
type ActionService struct {
	worker  *Worker
	codec   *message.Codec
	timeout time.Duration
	log     commonlog.Logger
}

// NewActionService creates an ActionService.
func NewActionService(worker *Worker, codec *message.Codec, timeout time.Duration) *ActionService {
	return &ActionService{
		worker:  worker,
		codec:   codec,
		timeout: timeout,
		log:     commonlog.GetLogger("waysome.server"),
	}
}

// Process handles the Connect procedure. A reply of kind ReplyNone means
// the transaction produced no reply.
func (s *ActionService) Process(
	ctx context.Context,
	req *connect.Request[message.WireTransaction],
) (*connect.Response[message.WireReply], error) {
	reply, err := s.Handle(ctx, req.Msg)
	if err != nil {
		return nil, connect.NewError(connectCode(err), err)
	}
	return connect.NewResponse(reply), nil
}

// Handle decodes w, processes it and encodes the reply. Malformed input
// and panics become error replies; an error is returned only when the
// transaction could not be run at all.
func (s *ActionService) Handle(ctx context.Context, w *message.WireTransaction) (*message.WireReply, error) {
	if w == nil {
		return s.errorReply(0, DescDecode, message.ErrMalformed), nil
	}
	tx, err := s.codec.FromWireTransaction(w)
	if err != nil {
		s.log.Warningf("transaction %d: %s", w.ID, err)
		return s.errorReply(w.ID, DescDecode, err), nil
	}
	defer object.Unref(tx)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.worker.Do(ctx, func(ctx context.Context, m *action.Manager) message.Reply {
		return m.Process(ctx, tx)
	})
	if errors.Is(err, ErrPanic) {
		s.log.Errorf("transaction %d: %s", tx.ID(), err)
		return s.errorReply(tx.ID(), DescInternal, err), nil
	}
	if err != nil {
		return nil, err
	}
	if reply != nil {
		defer object.Unref(reply)
	}

	wr, err := s.codec.ToWireReply(tx.ID(), reply)
	if err != nil {
		s.log.Errorf("transaction %d: encoding reply: %s", tx.ID(), err)
		return s.errorReply(tx.ID(), DescInternal, err), nil
	}
	return wr, nil
}

func (s *ActionService) errorReply(id uint64, desc string, err error) *message.WireReply {
	return &message.WireReply{
		ID:          id,
		Kind:        message.ReplyError,
		Code:        action.Code(err),
		Description: desc,
		Detail:      &message.WireValue{Type: value.TypeString, Str: err.Error()},
	}
}

func connectCode(err error) connect.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, ErrStopped):
		return connect.CodeUnavailable
	}
	return connect.CodeInternal
}

// NewActionServiceHandler returns the path and handler serving s.
func NewActionServiceHandler(s *ActionService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(cborCodec{})}, opts...)
	return ProcessProcedure, connect.NewUnaryHandler(ProcessProcedure, s.Process, opts...)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls ActionService over Connect.
type Client struct {
	process *connect.Client[message.WireTransaction, message.WireReply]
	codec   *message.Codec
}

// NewClient creates a client for the service at baseURL, such as
// http://localhost:7420.
func NewClient(httpClient connect.HTTPClient, baseURL string, codec *message.Codec, opts ...connect.ClientOption) *Client {
	if codec == nil {
		codec = message.NewCodec(nil)
	}
	opts = append([]connect.ClientOption{connect.WithCodec(cborCodec{})}, opts...)
	return &Client{
		process: connect.NewClient[message.WireTransaction, message.WireReply](
			httpClient, strings.TrimRight(baseURL, "/")+ProcessProcedure, opts...),
		codec: codec,
	}
}

// ProcessWire sends a wire transaction and returns the wire reply.
func (c *Client) ProcessWire(ctx context.Context, w *message.WireTransaction) (*message.WireReply, error) {
	resp, err := c.process.CallUnary(ctx, connect.NewRequest(w))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Process sends tx and decodes the reply; nil means no reply.
func (c *Client) Process(ctx context.Context, tx *message.Transaction) (message.Reply, error) {
	w, err := c.codec.ToWireTransaction(tx)
	if err != nil {
		return nil, fmt.Errorf("server: encoding transaction: %w", err)
	}
	wr, err := c.ProcessWire(ctx, w)
	if err != nil {
		return nil, err
	}
	return c.codec.FromWireReply(wr)
}
