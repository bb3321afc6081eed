package flow

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/flow/template"
)

func TestCollectorInstallsTemplateThenDecodesData(t *testing.T) {
	cache := template.New()
	c := NewCollector(cache, 65535, 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.LocalAddr().String()
	ln.Close()

	go c.Serve(ctx, addr)
	waitListening(t, c)

	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tmpl := sampleTemplate()
	tmplPkt := Packet{
		Header: Header{Version: VersionIPFIX, SourceID: 1},
		Sets:   []Set{TemplateSet{Records: []TemplateRecord{tmpl}}},
	}
	raw, err := Encode(tmplPkt)
	if err != nil {
		t.Fatalf("encode template packet: %v", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write template packet: %v", err)
	}
	if err := drain(t, c, 2*time.Second); err != nil {
		t.Fatalf("waiting for template packet: %v", err)
	}

	data := DataRecordBytes(append(append([]byte{192, 0, 2, 1}, 203, 0, 113, 5), 0, 0, 0, 42))
	dataPkt := Packet{
		Header: Header{Version: VersionIPFIX, SourceID: 1},
		Sets:   []Set{DataSet{TemplateID: tmpl.TemplateID, Records: []DataRecordBytes{data}}},
	}
	raw, err = Encode(dataPkt)
	if err != nil {
		t.Fatalf("encode data packet: %v", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write data packet: %v", err)
	}

	select {
	case dp := <-c.Packets:
		values, ok := dp.Records[tmpl.TemplateID]
		if !ok || len(values) != 1 || len(values[0]) != 3 {
			t.Fatalf("expected 1 decoded record of 3 fields, got %+v", dp.Records)
		}
		if values[0][2].AsUint() != 42 {
			t.Fatalf("expected packetDeltaCount 42, got %d", values[0][2].AsUint())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded data packet")
	}
}

func waitListening(t *testing.T, c *Collector) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Listening() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("collector never started listening")
}

// drain consumes and discards the next packet off c.Packets (the
// template-only packet contributes no Records entries).
func drain(t *testing.T, c *Collector, timeout time.Duration) error {
	t.Helper()
	select {
	case <-c.Packets:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
