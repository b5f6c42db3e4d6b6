package command

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/testutil/testlog"
)

func TestParseValidCommands(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		line string
		want Command
	}{
		{"get_state", Command{Name: GetState}},
		{"  PING  ", Command{Name: Ping}},
		{"data_port 4001", Command{Name: DataPort, Text: "4001", Port: 4001}},
		{"instrument_addr 10.0.0.5", Command{Name: InstrumentAddr, Text: "10.0.0.5"}},
		{"heartbeat_interval 0", Command{Name: HeartbeatInterval, Text: "0"}},
		{"heartbeat_interval 15", Command{Name: HeartbeatInterval, Text: "15", Duration: 15 * time.Second}},
		{"break", Command{Name: Break, Duration: DefaultBreakDuration}},
		{"break 100", Command{Name: Break, Text: "100", Duration: 100 * time.Millisecond}},
		{"instrument_command set baud 9600", Command{Name: InstrumentCommand, Text: "set baud 9600"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got=%+v want=%+v", tc.line, got, tc.want)
		}
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	testlog.Start(t)

	cases := map[string]error{
		"":                        ErrEmpty,
		"launch":                  ErrUnknownCommand,
		"data_port":               ErrMissingArgument,
		"data_port abc":           ErrInvalidArgument,
		"data_port 70000":         ErrInvalidArgument,
		"get_state now":           ErrInvalidArgument,
		"heartbeat_interval -1":   ErrInvalidArgument,
		"instrument_addr a b":     ErrInvalidArgument,
		"instrument_command":      ErrMissingArgument,
		"break 0":                 ErrInvalidArgument,
		"instrument_data_port -5": ErrInvalidArgument,
	}
	for line, want := range cases {
		if _, err := Parse(line); !errors.Is(err, want) {
			t.Fatalf("parse %q: expected %v, got %v", line, want, err)
		}
	}
}

func TestLineBufferReassemblesChunks(t *testing.T) {
	testlog.Start(t)

	var b LineBuffer
	lines, err := b.Feed([]byte("get_st"))
	if err != nil || len(lines) != 0 {
		t.Fatalf("partial line should be held: lines=%v err=%v", lines, err)
	}
	lines, err = b.Feed([]byte("ate\r\nping\nbre"))
	if err != nil || len(lines) != 2 || lines[0] != "get_state" || lines[1] != "ping" {
		t.Fatalf("unexpected lines: %q err=%v", lines, err)
	}
	b.Reset()
	lines, _ = b.Feed([]byte("ak\n"))
	if len(lines) != 1 || lines[0] != "ak" {
		t.Fatalf("reset should drop the partial line: %q", lines)
	}

	long := make([]byte, MaxLineLen+1)
	if _, err := b.Feed(long); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}
