package id3v2

import "github.com/pkg/errors"

// parseUint decodes big-endian bytes where each byte carries bitsPerByte
// significant bits: 8 for plain byte concatenation, 7 for the synchsafe
// integers ID3v2 uses so that size fields can never contain an MPEG frame
// sync pattern. Bits above bitsPerByte are masked off; per the ID3v2 spec
// the MSB of a synchsafe byte is always zero. An encoding wider than 32
// bits
// fails with ErrOverflow rather than saturating; hostile size fields stop
// here.
func parseUint(data []byte, bitsPerByte uint) (uint32, error) {
	if bitsPerByte*uint(len(data)) > 32 {
		return 0, errors.Wrapf(ErrOverflow, "%d bytes at %d bits each", len(data), bitsPerByte)
	}
	mask := byte(1)<<bitsPerByte - 1
	var v uint32
	for _, b := range data {
		v = v<<bitsPerByte | uint32(b&mask)
	}
	return v, nil
}

// formatSynchsafe is the four-byte synchsafe encode counterpart of
// parseUint(data, 7). Values above 28 bits do not fit and are truncated by
// the shift; size fields are produced from measured lengths, which the
// format caps well below that.
func formatSynchsafe(v uint32) [4]byte {
	var out [4]byte
	for i := 3; i >= 0; i-- {
		out[i] = byte(v & 0x7F)
		v >>= 7
	}
	return out
}
