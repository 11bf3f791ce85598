package progress

import "encoding/binary"

// packUint64s serializes a coordinate vector into a fixed-width string so
// that VectorTime/VectorSummary stay comparable (and thus usable as
// ChangeBatch map keys) without holding a slice.
func packUint64s(values []uint64) string {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return string(buf)
}

func unpackUint64s(packed string, width int) []uint64 {
	out := make([]uint64, width)
	for i := 0; i < width; i++ {
		out[i] = binary.LittleEndian.Uint64([]byte(packed[i*8 : i*8+8]))
	}
	return out
}
