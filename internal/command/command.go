// Package command parses the port agent control grammar spoken on the
// observatory command port: one command per line, whitespace separated.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmpty           = errors.New("command: empty command")
	ErrUnknownCommand  = errors.New("command: unknown command")
	ErrMissingArgument = errors.New("command: missing argument")
	ErrInvalidArgument = errors.New("command: invalid argument")
	ErrLineTooLong     = errors.New("command: line too long")
)

type Name string

const (
	GetState              Name = "get_state"
	GetConfig             Name = "get_config"
	Ping                  Name = "ping"
	HeartbeatInterval     Name = "heartbeat_interval"
	InstrumentAddr        Name = "instrument_addr"
	InstrumentDataPort    Name = "instrument_data_port"
	InstrumentCommandPort Name = "instrument_command_port"
	DataPort              Name = "data_port"
	CommandPort           Name = "command_port"
	SnifferPort           Name = "sniffer_port"
	Break                 Name = "break"
	InstrumentCommand     Name = "instrument_command"
	Shutdown              Name = "shutdown"
)

// DefaultBreakDuration applies when break is sent without a duration.
const DefaultBreakDuration = 500 * time.Millisecond

type argKind int

const (
	argNone argKind = iota
	argPort
	argSeconds
	argHost
	argOptionalMillis
	argText
)

var grammar = map[Name]argKind{
	GetState:              argNone,
	GetConfig:             argNone,
	Ping:                  argNone,
	Shutdown:              argNone,
	HeartbeatInterval:     argSeconds,
	InstrumentAddr:        argHost,
	InstrumentDataPort:    argPort,
	InstrumentCommandPort: argPort,
	DataPort:              argPort,
	CommandPort:           argPort,
	SnifferPort:           argPort,
	Break:                 argOptionalMillis,
	InstrumentCommand:     argText,
}

// Command is one parsed control line.
type Command struct {
	Name Name
	// Text is the raw argument text after the command name.
	Text string
	// Port holds the value of port commands.
	Port int
	// Duration holds heartbeat intervals and break lengths.
	Duration time.Duration
}

// Parse validates one control line.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmpty
	}
	head, rest, _ := strings.Cut(line, " ")
	name := Name(strings.ToLower(head))
	rest = strings.TrimSpace(rest)

	kind, ok := grammar[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, head)
	}
	cmd := Command{Name: name, Text: rest}

	switch kind {
	case argNone:
		if rest != "" {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrInvalidArgument, name)
		}
	case argPort:
		port, err := requireInt(name, rest)
		if err != nil {
			return Command{}, err
		}
		if port <= 0 || port > 0xFFFF {
			return Command{}, fmt.Errorf("%w: %s port out of range: %d", ErrInvalidArgument, name, port)
		}
		cmd.Port = port
	case argSeconds:
		secs, err := requireInt(name, rest)
		if err != nil {
			return Command{}, err
		}
		if secs < 0 {
			return Command{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidArgument, name)
		}
		cmd.Duration = time.Duration(secs) * time.Second
	case argHost:
		if rest == "" {
			return Command{}, fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
		if strings.ContainsAny(rest, " \t") {
			return Command{}, fmt.Errorf("%w: %s expects one host", ErrInvalidArgument, name)
		}
	case argOptionalMillis:
		cmd.Duration = DefaultBreakDuration
		if rest != "" {
			ms, err := requireInt(name, rest)
			if err != nil {
				return Command{}, err
			}
			if ms <= 0 {
				return Command{}, fmt.Errorf("%w: %s duration must be positive", ErrInvalidArgument, name)
			}
			cmd.Duration = time.Duration(ms) * time.Millisecond
		}
	case argText:
		if rest == "" {
			return Command{}, fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
	}
	return cmd, nil
}

func requireInt(name Name, raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalidArgument, name, raw)
	}
	return v, nil
}

func (c Command) String() string {
	if c.Text == "" {
		return string(c.Name)
	}
	return string(c.Name) + " " + c.Text
}
