package id3v2

import "github.com/pkg/errors"

// The MPEG frame sync pattern is 0xFF followed by a byte with its top
// three bits set. Unsynchronization stuffs a 0x00 after every 0xFF that
// would otherwise be followed by such a byte, or by 0x00, so a player's
// sync scanner can never misfire inside tag data.

// Unsynchronize applies the stuffing transform to in. changed reports
// whether any stuffing byte was inserted. endPadding reports that the
// input ended with 0xFF, which needs a trailing 0x00 to stay safe against
// whatever data follows the tag; that pad byte is only appended here when
// changed is already true, so callers that need it unconditionally must
// append it themselves when endPadding is set and changed is not.
func Unsynchronize(in []byte) (out []byte, changed, endPadding bool) {
	out = make([]byte, 0, len(in))
	for i, b := range in {
		out = append(out, b)
		if b != 0xFF {
			continue
		}
		if i == len(in)-1 {
			endPadding = true
			break
		}
		if next := in[i+1]; next >= 0xE0 || next == 0x00 {
			out = append(out, 0x00)
			changed = true
		}
	}
	if endPadding && changed {
		out = append(out, 0x00)
	}
	return out, changed, endPadding
}

// Deunsynchronize reverses Unsynchronize: the 0x00 stuffed after each
// 0xFF is dropped. A 0xFF followed by a byte >= 0xE0 cannot appear in
// well-formed unsynchronized data and fails with ErrUnsyncPattern.
func Deunsynchronize(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		b := in[i]
		out = append(out, b)
		if b != 0xFF || i == len(in)-1 {
			continue
		}
		switch next := in[i+1]; {
		case next == 0x00:
			i++ // stuffing byte, drop it
		case next >= 0xE0:
			return nil, errors.Wrapf(ErrUnsyncPattern, "0xFF followed by %#02x at offset %d", next, i)
		}
	}
	return out, nil
}

// readUnsynchronized reads exactly *count decoded bytes from src,
// transparently dropping the stuffing byte after each 0xFF. *count is
// incremented once per dropped byte, so after a successful return it
// holds the number of bytes actually consumed from the source and the
// caller's on-disk size accounting stays correct.
func readUnsynchronized(src *source, count *uint32) ([]byte, error) {
	want := *count
	out := make([]byte, 0, want)
	for uint32(len(out)) < want {
		b, err := src.readByte()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		if b != 0xFF || uint32(len(out)) == want {
			continue
		}
		next, err := src.readByte()
		if err != nil {
			return nil, err
		}
		switch {
		case next == 0x00:
			*count++ // stuffing byte, not part of the decoded run
		case next >= 0xE0:
			return nil, errors.Wrapf(ErrUnsyncPattern, "0xFF followed by %#02x", next)
		default:
			out = append(out, next)
		}
	}
	return out, nil
}
