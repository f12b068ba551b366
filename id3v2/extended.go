package id3v2

import (
	"hash/crc32"

	"github.com/pkg/errors"
)

const (
	// v2.3 extended header flags, first flag byte
	ext23FlagCRC = 1 << 7

	// v2.4 extended header flags
	ext24FlagUpdate       = 1 << 7
	ext24FlagCRC          = 1 << 6
	ext24FlagRestrictions = 1 << 5
)

// parseExt23 interprets a v2.3 extended header block: two flag bytes and a
// four-byte padding size. crc holds the four bytes read past the declared
// size when the first flag byte claimed a CRC, nil otherwise.
func parseExt23(block, crc []byte) (*ExtHeader, error) {
	if len(block) < 6 {
		return nil, errors.Wrapf(ErrFormat, "extended header block is %d bytes, need 6", len(block))
	}
	ext := &ExtHeader{
		UnknownFlags: block[0]&^byte(ext23FlagCRC) != 0 || block[1] != 0,
	}

	pad, err := parseUint(block[2:6], 8)
	if err != nil {
		return nil, err
	}
	ext.PaddingSize = pad

	if block[0]&ext23FlagCRC != 0 {
		if len(crc) != 4 {
			return nil, errors.Wrapf(ErrFormat, "CRC claimed but %d of 4 bytes supplied", len(crc))
		}
		v, err := parseUint(crc, 8)
		if err != nil {
			return nil, err
		}
		ext.CRC = v
		ext.HasCRC = true
	}
	return ext, nil
}

// parseExt24 interprets a v2.4 extended header block, i.e. the declared
// extent minus the four size bytes: a synchsafe flag byte count that must
// be 1, the flag byte, then a length-prefixed data block for each set
// flag in order. A length that disagrees with what a known flag requires
// is a hard failure, not something to clamp.
func parseExt24(block []byte) (*ExtHeader, error) {
	if len(block) < 2 {
		return nil, errors.Wrapf(ErrFormat, "extended header block is %d bytes, need 2", len(block))
	}
	if n := block[0] & 0x7F; n != 1 {
		return nil, errors.Wrapf(ErrFormat, "header declares %d flag bytes, want 1", n)
	}

	flags := block[1]
	ext := &ExtHeader{UnknownFlags: flags&0x1F != 0}
	p := 2

	// take consumes the length prefix and data block for one flag,
	// enforcing the exact length the flag requires.
	take := func(name string, want int) ([]byte, error) {
		if p >= len(block) {
			return nil, errors.Wrapf(ErrFormat, "extended header ends before %s length", name)
		}
		n := int(block[p] & 0x7F)
		p++
		if n != want {
			return nil, errors.Wrapf(ErrFormat, "%s data length %d, must be %d", name, n, want)
		}
		if p+n > len(block) {
			return nil, errors.Wrapf(ErrFormat, "extended header ends inside %s data", name)
		}
		data := block[p : p+n]
		p += n
		return data, nil
	}

	if flags&ext24FlagUpdate != 0 {
		if _, err := take("update", 0); err != nil {
			return nil, err
		}
		ext.IsUpdate = true
	}
	if flags&ext24FlagCRC != 0 {
		data, err := take("CRC", 5)
		if err != nil {
			return nil, err
		}
		crc, err := parseSynchsafeCRC(data)
		if err != nil {
			return nil, err
		}
		ext.CRC = crc
		ext.HasCRC = true
	}
	if flags&ext24FlagRestrictions != 0 {
		data, err := take("restrictions", 1)
		if err != nil {
			return nil, err
		}
		ext.Restrictions = data[0]
		ext.HasRestrictions = true
	}
	return ext, nil
}

// parseSynchsafeCRC decodes the five-byte synchsafe CRC of a v2.4
// extended header. Five 7-bit bytes span 35 bits, too wide for parseUint's
// 32-bit ceiling; the leading byte may only use its low four bits, which
// brings the value back within range.
func parseSynchsafeCRC(data []byte) (uint32, error) {
	if len(data) != 5 {
		return 0, errors.Wrapf(ErrFormat, "CRC data is %d bytes, must be 5", len(data))
	}
	if data[0] > 0x0F {
		return 0, errors.Wrapf(ErrOverflow, "CRC leading byte %#02x", data[0])
	}
	var v uint32
	for _, b := range data {
		v = v<<7 | uint32(b&0x7F)
	}
	return v, nil
}

// crcMatches reports whether the CRC-32 of body equals crc. The IEEE
// polynomial is the same one zlib and PKZIP use. The recorded CRC covers
// the de-unsynchronized body with padding already stripped.
func crcMatches(body []byte, crc uint32) bool {
	return crc32.ChecksumIEEE(body) == crc
}
