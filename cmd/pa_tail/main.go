// Command pa_tail is an observatory-side client for a running port agent.
// It prints packets from a data port in their ASCII form, or sends one
// control command to a command port and prints the reply.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/portagent/internal/packet"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pa_tail: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		types      []string
		payload    bool
		followMode bool
		timeout    time.Duration
	)
	root := &cobra.Command{
		Use:          "pa_tail <host:data_port>",
		Short:        "Print packets published on a port agent data port.",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseTypes(types)
			if err != nil {
				return err
			}
			return follow(cmd.Context(), args[0], timeout, followMode, cmd.ErrOrStderr(), func(conn net.Conn) error {
				return tail(conn, out, filter, payload)
			})
		},
	}
	root.Flags().StringSliceVarP(&types, "type", "t", nil, "only print these packet types (repeatable)")
	root.Flags().BoolVar(&payload, "payload", false, "print escaped payloads only")
	root.Flags().BoolVarP(&followMode, "follow", "f", false, "reconnect with backoff when the port agent goes away")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "dial timeout")

	root.AddCommand(&cobra.Command{
		Use:   "send <host:command_port> <command...>",
		Short: "Send one control command and print the reply.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial(cmd.Context(), args[0], timeout)
			if err != nil {
				return err
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(timeout))
			reply, err := send(conn, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, reply)
			return err
		},
	})
	return root
}

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func parseTypes(raw []string) (packet.TypeSet, error) {
	if len(raw) == 0 {
		return packet.NewTypeSet(packet.AllTypes()...), nil
	}
	types := make([]packet.Type, 0, len(raw))
	for _, name := range raw {
		t, err := packet.ParseType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return packet.NewTypeSet(types...), nil
}

// follow runs session against addr until ctx ends. Without keepGoing it
// makes a single attempt.
func follow(ctx context.Context, addr string, timeout time.Duration, keepGoing bool, status io.Writer, session func(net.Conn) error) error {
	b := defaultBackoff()
	for attempt := 1; ; attempt++ {
		conn, err := dial(ctx, addr, timeout)
		if err == nil {
			attempt = 0
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			err = session(conn)
			stop()
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		if !keepGoing {
			return err
		}
		wait := b.delay(max(attempt, 1))
		if err != nil {
			fmt.Fprintf(status, "# %v, reconnecting in %s\n", err, wait.Round(time.Millisecond))
		} else {
			fmt.Fprintf(status, "# disconnected, reconnecting in %s\n", wait.Round(time.Millisecond))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// tail decodes binary packets from r until EOF, resyncing past garbage.
func tail(r io.Reader, out io.Writer, filter packet.TypeSet, payloadOnly bool) error {
	br := bufio.NewReader(r)
	for {
		p, err := packet.ReadPacket(br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, packet.ErrChecksumMismatch) || errors.Is(err, packet.ErrPacketTooShort) {
				fmt.Fprintf(out, "# skipped corrupt packet: %v\n", err)
				continue
			}
			return err
		}
		if !filter.Has(p.Type()) {
			continue
		}
		line := p.ASCII()
		if payloadOnly {
			line = packet.EscapePayload(p.Payload()) + "\n"
		}
		if _, err := io.WriteString(out, line); err != nil {
			return err
		}
	}
}

// send writes one command line and returns the first reply line.
func send(rw io.ReadWriter, line string) (string, error) {
	if _, err := io.WriteString(rw, line+"\n"); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(rw).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
