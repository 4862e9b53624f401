// waysomectl - submit transactions to a running waysomed
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/waysome/waysome/config"
	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/server"
	"github.com/waysome/waysome/value"
)

func main() {
	addr := flag.String("addr", "", "Connect base URL (e.g. http://localhost:7420); default is the unix socket")
	socket := flag.String("socket", config.DefaultSocketPath(), "Unix socket path")
	expr := flag.String("e", "", "Statements to run; without -e statements are read from stdin, one transaction per line")
	id := flag.Uint64("id", 1, "Id of the first transaction")
	store := flag.Bool("store", false, "Store the transaction")
	noExec := flag.Bool("no-exec", false, "Do not execute the transaction (use with -store)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: waysomectl [options]\n\n")
		fmt.Fprintf(os.Stderr, "Sends transactions to waysomed and prints the replies.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  waysomectl -e 'push 42'                      # prints 42\n")
		fmt.Fprintf(os.Stderr, "  waysomectl -e 'push 2 3; add @-2 @-1'        # prints 5\n")
		fmt.Fprintf(os.Stderr, "  waysomectl -e 'event' -store -no-exec -id 7  # store for later runs\n")
		fmt.Fprintf(os.Stderr, "  waysomectl -addr http://localhost:7420 -e 'concat \"a\" \"b\"'\n")
	}
	flag.Parse()

	var flags message.Flags
	if !*noExec {
		flags |= message.FlagExec
	}
	if *store {
		flags |= message.FlagStore
	}

	var sources []string
	if *expr != "" {
		sources = []string{*expr}
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				sources = append(sources, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
	}

	codec := message.NewCodec(nil)
	var txs []*message.WireTransaction
	for i, src := range sources {
		w, err := buildTransaction(codec, *id+uint64(i), flags, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: line %d: %v\n", i+1, err)
			os.Exit(1)
		}
		txs = append(txs, w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var replies []*message.WireReply
	var err error
	if *addr != "" {
		replies, err = sendConnect(ctx, *addr, txs)
	} else {
		replies, err = sendSocket(ctx, *socket, txs)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, r := range replies {
		if r.Kind == message.ReplyError {
			failed = true
		}
		fmt.Println(formatReply(codec, r))
	}
	if failed {
		os.Exit(2)
	}
}

func buildTransaction(codec *message.Codec, id uint64, flags message.Flags, src string) (*message.WireTransaction, error) {
	list, err := parseCommands(src)
	if err != nil {
		return nil, err
	}
	tx := message.NewTransaction(id, flags, list)
	defer object.Unref(tx)
	return codec.ToWireTransaction(tx)
}

// sendConnect posts each transaction to the Connect endpoint.
func sendConnect(ctx context.Context, baseURL string, txs []*message.WireTransaction) ([]*message.WireReply, error) {
	client := server.NewClient(http.DefaultClient, baseURL, nil)
	var replies []*message.WireReply
	for _, w := range txs {
		r, err := client.ProcessWire(ctx, w)
		if err != nil {
			return replies, fmt.Errorf("transaction %d: %w", w.ID, err)
		}
		if r.Kind != message.ReplyNone {
			replies = append(replies, r)
		}
	}
	return replies, nil
}

// sendSocket writes every transaction, half-closes the connection and
// reads replies until the daemon closes its side.
func sendSocket(ctx context.Context, path string, txs []*message.WireTransaction) ([]*message.WireReply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	enc := message.NewEncoder(conn)
	for _, w := range txs {
		if err := enc.Encode(w); err != nil {
			return nil, fmt.Errorf("sending transaction %d: %w", w.ID, err)
		}
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	dec := message.NewDecoder(conn)
	var replies []*message.WireReply
	for {
		var r message.WireReply
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				return replies, nil
			}
			return replies, fmt.Errorf("reading reply: %w", err)
		}
		replies = append(replies, &r)
	}
}

func formatReply(codec *message.Codec, w *message.WireReply) string {
	switch w.Kind {
	case message.ReplyValue:
		v, err := codec.FromWireValue(w.Value)
		if err != nil {
			return fmt.Sprintf("%d: <%v>", w.ID, err)
		}
		defer value.Deinit(v)
		return fmt.Sprintf("%d: %s", w.ID, value.Describe(v))
	case message.ReplyError:
		s := fmt.Sprintf("%d: error %d: %s", w.ID, w.Code, w.Description)
		if w.Detail != nil && w.Detail.Type == value.TypeString {
			s += ": " + w.Detail.Str
		}
		return s
	}
	return fmt.Sprintf("%d: no reply", w.ID)
}
