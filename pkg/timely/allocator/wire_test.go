package allocator

import (
	"bytes"
	"testing"
)

func TestFrame_WriteThenReadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	h := frameHeader{ChannelID: 7, Source: 1, Target: 2, Length: 5}
	if err := writeFrame(&buf, h, []byte("hello")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	gotHeader, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if gotHeader != h {
		t.Fatalf("expected header %+v, got %+v", h, gotHeader)
	}
	if string(payload) != "hello" {
		t.Fatalf("expected payload 'hello', got %q", payload)
	}
}

func TestHandshake_WriteThenReadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHandshake(&buf, 3, "1.0.0"); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	index, ver, err := readHandshake(&buf)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if index != 3 || ver != "1.0.0" {
		t.Fatalf("expected index=3 version=1.0.0, got index=%d version=%s", index, ver)
	}
}

func TestHandshake_RejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	buf.Write(make([]byte, 24))

	if _, _, err := readHandshake(&buf); err == nil {
		t.Fatalf("expected an error reading a handshake with a bad magic")
	}
}

func TestCheckVersion_RejectsIncompatibleMajor(t *testing.T) {
	p := &ClusterPeer{}
	if err := p.checkVersion("2.0.0"); err == nil {
		t.Fatalf("expected version 2.0.0 to be rejected by the ~> 1.0 constraint")
	}
	if err := p.checkVersion(ProtocolVersion); err != nil {
		t.Fatalf("expected the build's own protocol version to satisfy its constraint: %v", err)
	}
}
