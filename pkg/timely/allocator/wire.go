package allocator

import (
	"encoding/binary"
	"fmt"
	"io"
)

// protocolMagic opens every cluster connection, catching a worker that
// dialed the wrong port (or a non-timely service entirely) before either
// side tries to interpret the other's bytes as frames.
var protocolMagic = [8]byte{'g', 'o', 't', 'm', 'l', 'y', '0', '1'}

// frameHeader is the fixed-size prefix of every message crossing a
// cluster connection: u64 channel id, u64 source worker, u64 target
// worker, u64 payload length, all little-endian, exactly as specified for
// the wire protocol.
type frameHeader struct {
	ChannelID int
	Source    int
	Target    int
	Length    uint64
}

const frameHeaderSize = 32

func writeFrame(w io.Writer, h frameHeader, payload []byte) error {
	var buf [frameHeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.ChannelID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Source))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.Target))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(len(payload)))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("allocator: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("allocator: writing frame payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) (frameHeader, []byte, error) {
	var buf [frameHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return frameHeader{}, nil, err
	}
	h := frameHeader{
		ChannelID: int(binary.LittleEndian.Uint64(buf[0:8])),
		Source:    int(binary.LittleEndian.Uint64(buf[8:16])),
		Target:    int(binary.LittleEndian.Uint64(buf[16:24])),
		Length:    binary.LittleEndian.Uint64(buf[24:32]),
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frameHeader{}, nil, fmt.Errorf("allocator: reading frame payload: %w", err)
	}
	return h, payload, nil
}

// writeHandshake sends the magic, the dialer's worker index (so the
// accepting side learns which peer just connected, since accept order
// need not match dial order once several lower-indexed workers dial
// concurrently), and a length-prefixed protocol version string.
func writeHandshake(w io.Writer, selfIndex int, protocolVersion string) error {
	if _, err := w.Write(protocolMagic[:]); err != nil {
		return fmt.Errorf("allocator: writing handshake magic: %w", err)
	}
	var indexBuf [8]byte
	binary.LittleEndian.PutUint64(indexBuf[:], uint64(selfIndex))
	if _, err := w.Write(indexBuf[:]); err != nil {
		return fmt.Errorf("allocator: writing handshake index: %w", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(protocolVersion)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("allocator: writing handshake version length: %w", err)
	}
	_, err := w.Write([]byte(protocolVersion))
	return err
}

// readHandshake reads and validates the magic, returning the peer's
// worker index and advertised protocol version string.
func readHandshake(r io.Reader) (peerIndex int, protocolVersion string, err error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, "", fmt.Errorf("allocator: reading handshake magic: %w", err)
	}
	if magic != protocolMagic {
		return 0, "", fmt.Errorf("allocator: peer sent an unrecognized protocol magic %x", magic)
	}
	var indexBuf [8]byte
	if _, err := io.ReadFull(r, indexBuf[:]); err != nil {
		return 0, "", fmt.Errorf("allocator: reading handshake index: %w", err)
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, "", fmt.Errorf("allocator: reading handshake version length: %w", err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	versionBytes := make([]byte, n)
	if _, err := io.ReadFull(r, versionBytes); err != nil {
		return 0, "", fmt.Errorf("allocator: reading handshake version: %w", err)
	}
	return int(binary.LittleEndian.Uint64(indexBuf[:])), string(versionBytes), nil
}
