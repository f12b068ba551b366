package id3v2

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// headerSize is the fixed length of the base tag header.
const headerSize = 10

var magic = []byte("ID3")

// rawHeader is the version-independent reading of the 10 header bytes.
// Interpreting the flag byte is deferred to the per-version pipelines.
type rawHeader struct {
	minor uint8
	flags byte
	size  uint32
}

// Verify reports whether rs is positioned at a valid ID3v2 header of
// version v. The reader is rewound to its starting position regardless of
// the outcome, so format auto-detection can probe without committing to a
// parse.
func Verify(rs io.ReadSeeker, v Version) bool {
	src := newSource(rs)
	b, err := src.readExactly(headerSize)
	ok := err == nil && validHeader(b, v)
	src.rewindAll()
	return ok
}

// validHeader requires the literal "ID3" magic plus an exact major version
// match at byte 3.
func validHeader(b []byte, v Version) bool {
	return bytes.Equal(b[:3], magic) && Version(b[3]) == v
}

// parseBaseHeader reads and validates the 10-byte tag header. Every
// failure here classifies as "this is not a tag of the requested version",
// so the consumed bytes are rewound before returning.
func parseBaseHeader(src *source, v Version) (rawHeader, error) {
	b, err := src.readExactly(headerSize)
	if err != nil {
		src.rewindAll()
		if errors.Cause(err) == ErrUnexpectedEOF {
			return rawHeader{}, errors.Wrap(ErrFormat, "truncated header")
		}
		return rawHeader{}, err
	}

	if !bytes.Equal(b[:3], magic) {
		src.rewindAll()
		return rawHeader{}, errors.Wrapf(ErrFormat, "bad magic %q", b[:3])
	}
	if b[3] < 2 || b[3] > 4 {
		src.rewindAll()
		return rawHeader{}, errors.Wrapf(ErrVersion, "2.%d", b[3])
	}
	if Version(b[3]) != v {
		src.rewindAll()
		return rawHeader{}, errors.Wrapf(ErrFormat, "tag is ID3v2.%d, wanted %s", b[3], v)
	}

	size, err := parseUint(b[6:headerSize], 7)
	if err != nil {
		src.rewindAll()
		return rawHeader{}, err
	}
	return rawHeader{minor: b[4], flags: b[5], size: size}, nil
}
