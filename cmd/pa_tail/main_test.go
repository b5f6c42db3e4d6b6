package main

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/testutil/testlog"
)

func mustPacket(t *testing.T, typ packet.Type, payload string) *packet.Packet {
	t.Helper()
	p, err := packet.NewAt(typ, []byte(payload), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("new packet: %v", err)
	}
	return p
}

func TestTailPrintsFilteredPacketsAfterGarbage(t *testing.T) {
	testlog.Start(t)

	data := mustPacket(t, packet.DataFromInstrument, "T=1.0\r\n")
	beat := mustPacket(t, packet.Heartbeat, "")
	var stream bytes.Buffer
	stream.WriteString("noise")
	stream.Write(data.Marshal())
	stream.Write(beat.Marshal())

	filter, err := parseTypes([]string{"DATA_FROM_INSTRUMENT"})
	if err != nil {
		t.Fatalf("parse types: %v", err)
	}
	var out bytes.Buffer
	if err := tail(&stream, &out, filter, false); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if out.String() != data.ASCII() {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out.String(), data.ASCII())
	}
}

func TestTailPayloadOnly(t *testing.T) {
	testlog.Start(t)

	p := mustPacket(t, packet.DataFromInstrument, "a\x01")
	all, err := parseTypes(nil)
	if err != nil {
		t.Fatalf("parse types: %v", err)
	}
	var out bytes.Buffer
	if err := tail(bytes.NewReader(p.Marshal()), &out, all, true); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if got := out.String(); got != `a\x01`+"\n" {
		t.Fatalf("payload output=%q", got)
	}
	if _, err := parseTypes([]string{"NOT_A_TYPE"}); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestSendReturnsFirstReplyLine(t *testing.T) {
	testlog.Start(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		line, err := bufio.NewReader(server).ReadString('\n')
		if err != nil || strings.TrimSpace(line) != "get_state" {
			return
		}
		reply := mustStatus("CONNECTED")
		_, _ = server.Write([]byte(reply))
	}()

	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	reply, err := send(client, "get_state")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(reply, ">CONNECTED</port_agent_packet>") {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func mustStatus(text string) string {
	p, err := packet.New(packet.PortAgentStatus, []byte(text))
	if err != nil {
		return ""
	}
	return p.ASCII()
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	testlog.Start(t)

	b := backoff{initial: 100 * time.Millisecond, max: time.Second, multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := b.delay(i + 1); got != w {
			t.Fatalf("attempt %d: delay=%s want %s", i+1, got, w)
		}
	}

	jittered := defaultBackoff()
	for attempt := 1; attempt < 8; attempt++ {
		d := jittered.delay(attempt)
		if d < 0 || d > 15*time.Second {
			t.Fatalf("attempt %d: jittered delay out of bounds: %s", attempt, d)
		}
	}
}

func TestFollowSingleAttemptReturnsDialError(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	var status bytes.Buffer
	err = follow(context.Background(), addr, 200*time.Millisecond, false, &status, func(net.Conn) error {
		t.Fatalf("session should not run without a connection")
		return nil
	})
	if err == nil {
		t.Fatalf("expected dial error")
	}
}
