// Package id3v2 decodes the tag-level structure of ID3v2 tags: the 10-byte
// base header, the optional extended header, the unsynchronization byte
// stuffing, and the CRC check. Supported versions are 2.2, 2.3, and 2.4.
//
// The package stops where frame data begins. A successful parse yields the
// de-unsynchronized tag body with trailing padding stripped; decoding the
// frames inside it is the caller's business.
package id3v2

import (
	"io"

	"github.com/pkg/errors"
)

// A Version selects which ID3v2 revision Parse and Verify expect on the
// input. The three revisions share the 10-byte header layout but differ in
// flag semantics and extended header shape, so the caller picks one rather
// than the parser guessing.
type Version uint8

const (
	V22 Version = 2 + iota
	V23
	V24
)

func (v Version) String() string {
	switch v {
	case V22:
		return "ID3v2.2"
	case V23:
		return "ID3v2.3"
	case V24:
		return "ID3v2.4"
	}
	return "ID3v2.?"
}

var (
	// ErrFormat and ErrVersion are recoverable: the input is rewound to
	// where the parse began, so the caller may probe another version or
	// conclude no tag is present. All other errors mean the tag was
	// structurally confirmed and then found to be broken; the input is
	// left wherever the failure happened.
	ErrFormat        = errors.New("id3v2: not a valid ID3v2 header of the requested version")
	ErrVersion       = errors.New("id3v2: unsupported major version")
	ErrUnsyncPattern = errors.New("id3v2: malformed unsynchronized data")
	ErrUnexpectedEOF = errors.New("id3v2: unexpected end of input")
	ErrOverflow      = errors.New("id3v2: integer wider than 32 bits")
	ErrChecksum      = errors.New("id3v2: CRC mismatch")
)

const (
	// tag header flags, byte 5, MSB first
	flagUnsynchronisation = 1 << 7
	flagCompression       = 1 << 6 // v2.2 only
	flagExtendedHeader    = 1 << 6 // v2.3, v2.4
	flagExperimental      = 1 << 5 // v2.3, v2.4
	flagFooterPresent     = 1 << 4 // v2.4 only
)

// Header is the decoded form of the fixed 10 bytes at the start of every
// ID3v2 tag.
type Header struct {
	Major uint8
	Minor uint8

	Unsynchronisation bool
	ExtendedHeader    bool
	Experimental      bool
	Footer            bool // v2.4 only

	// UnknownFlags records that a flag bit with no meaning in this
	// version was set, either here or in the extended header. Such tags
	// are still parsed.
	UnknownFlags bool

	// Size is the on-disk length of everything after the 10-byte header,
	// before de-unsynchronization, excluding any footer.
	Size uint32
}

// ExtHeader holds the fields of the optional extended header. Presence
// varies by version: PaddingSize only exists in v2.3, IsUpdate and
// Restrictions only in v2.4.
type ExtHeader struct {
	PaddingSize uint32

	CRC    uint32
	HasCRC bool

	IsUpdate bool

	// Restrictions is recorded verbatim; its bits constrain encoders,
	// not decoders, so this package does not interpret them.
	Restrictions    byte
	HasRestrictions bool

	UnknownFlags bool
}

// Tag is the result of a successful parse. Body is the de-unsynchronized
// tag payload with trailing padding stripped, ready for a frame decoder.
// For a compressed v2.2 tag Body is nil: the tag is skipped wholesale.
type Tag struct {
	Header   Header
	Extended *ExtHeader
	Body     []byte

	dataOffset int64
}

// DataOffset returns the number of bytes the parse consumed, which is the
// offset of the first post-tag byte (normally audio data) relative to
// where the parse began.
func (t *Tag) DataOffset() int64 { return t.dataOffset }

// Parse reads a complete ID3v2 tag of version v from rs, which must be
// positioned at the first byte of the candidate tag. See the error
// variables for the rewind guarantees.
func Parse(rs io.ReadSeeker, v Version) (*Tag, error) {
	switch v {
	case V22, V23, V24:
	default:
		return nil, errors.Wrapf(ErrVersion, "2.%d", uint8(v))
	}

	src := newSource(rs)
	raw, err := parseBaseHeader(src, v)
	if err != nil {
		return nil, err
	}

	var tag *Tag
	switch v {
	case V22:
		tag, err = parse22(src, raw)
	case V23:
		tag, err = parse23(src, raw)
	case V24:
		tag, err = parse24(src, raw)
	}
	if err != nil {
		return nil, err
	}
	tag.dataOffset = src.pos()
	return tag, nil
}

// parse22 handles ID3v2.2, which has no extended header. A set compression
// flag means the tag uses the never-specified v2.2 compression scheme; the
// informal spec recommends skipping such tags, so the declared size is
// discarded and an empty body returned.
func parse22(src *source, raw rawHeader) (*Tag, error) {
	h := headerFromRaw(V22, raw)
	if raw.flags&flagCompression != 0 {
		if err := src.skip(int64(raw.size)); err != nil {
			return nil, err
		}
		return &Tag{Header: h}, nil
	}

	body, err := readBody(src, h.Unsynchronisation, raw.size)
	if err != nil {
		return nil, err
	}
	return &Tag{Header: h, Body: body}, nil
}

func parse23(src *source, raw rawHeader) (*Tag, error) {
	h := headerFromRaw(V23, raw)
	if !h.ExtendedHeader {
		body, err := readBody(src, h.Unsynchronisation, raw.size)
		if err != nil {
			return nil, err
		}
		return &Tag{Header: h, Body: body}, nil
	}

	// The v2.3 extended header size field does not count itself. The CRC,
	// when the first flag byte claims one, is four further bytes beyond
	// the declared size.
	sizeBytes, n1, err := readTagBytes(src, h.Unsynchronisation, 4)
	if err != nil {
		return nil, err
	}
	declared, err := parseUint(sizeBytes, 8)
	if err != nil {
		return nil, err
	}
	if declared < 6 {
		return nil, errors.Wrapf(ErrFormat, "extended header size %d, need at least 6", declared)
	}
	block, n2, err := readTagBytes(src, h.Unsynchronisation, declared)
	if err != nil {
		return nil, err
	}
	var (
		crcBytes []byte
		n3       uint32
	)
	if block[0]&ext23FlagCRC != 0 {
		crcBytes, n3, err = readTagBytes(src, h.Unsynchronisation, 4)
		if err != nil {
			return nil, err
		}
	}

	consumed := n1 + n2 + n3
	if consumed > raw.size {
		return nil, errors.Wrapf(ErrFormat, "extended header overruns tag: %d bytes of %d consumed",
			consumed, raw.size)
	}
	bodyCh := fetchBody(src, raw.size-consumed)

	ext, extErr := parseExt23(block, crcBytes)
	res := <-bodyCh
	if extErr != nil {
		return nil, extErr
	}
	if res.err != nil {
		return nil, res.err
	}

	body := res.data
	if h.Unsynchronisation {
		if body, err = Deunsynchronize(body); err != nil {
			return nil, err
		}
	}
	if ext.PaddingSize > uint32(len(body)) {
		return nil, errors.Wrapf(ErrFormat, "declared padding %d exceeds %d bytes of body",
			ext.PaddingSize, len(body))
	}
	body = body[:uint32(len(body))-ext.PaddingSize]

	if ext.HasCRC && !crcMatches(body, ext.CRC) {
		return nil, errors.Wrapf(ErrChecksum, "recorded %08x", ext.CRC)
	}
	if ext.UnknownFlags {
		h.UnknownFlags = true
	}
	return &Tag{Header: h, Extended: ext, Body: body}, nil
}

func parse24(src *source, raw rawHeader) (*Tag, error) {
	h := headerFromRaw(V24, raw)
	if !h.ExtendedHeader {
		body, err := readBody(src, h.Unsynchronisation, raw.size)
		if err != nil {
			return nil, err
		}
		return &Tag{Header: h, Body: body}, nil
	}

	// The v2.4 size field is synchsafe and counts itself, so the block
	// that follows is four bytes shorter than declared.
	sizeBytes, n1, err := readTagBytes(src, h.Unsynchronisation, 4)
	if err != nil {
		return nil, err
	}
	declared, err := parseUint(sizeBytes, 7)
	if err != nil {
		return nil, err
	}
	if declared < 6 {
		return nil, errors.Wrapf(ErrFormat, "extended header size %d, need at least 6", declared)
	}
	block, n2, err := readTagBytes(src, h.Unsynchronisation, declared-4)
	if err != nil {
		return nil, err
	}

	consumed := n1 + n2
	if consumed > raw.size {
		return nil, errors.Wrapf(ErrFormat, "extended header overruns tag: %d bytes of %d consumed",
			consumed, raw.size)
	}
	bodyCh := fetchBody(src, raw.size-consumed)

	ext, extErr := parseExt24(block)
	res := <-bodyCh
	if extErr != nil {
		return nil, extErr
	}
	if res.err != nil {
		return nil, res.err
	}

	body := res.data
	if h.Unsynchronisation {
		if body, err = Deunsynchronize(body); err != nil {
			return nil, err
		}
	}
	if ext.HasCRC && !crcMatches(body, ext.CRC) {
		return nil, errors.Wrapf(ErrChecksum, "recorded %08x", ext.CRC)
	}
	if ext.UnknownFlags {
		h.UnknownFlags = true
	}
	return &Tag{Header: h, Extended: ext, Body: body}, nil
}

// headerFromRaw interprets the flag byte for version v. Every bit with no
// assigned meaning in that version folds into UnknownFlags.
func headerFromRaw(v Version, raw rawHeader) Header {
	h := Header{
		Major:             uint8(v),
		Minor:             raw.minor,
		Unsynchronisation: raw.flags&flagUnsynchronisation != 0,
		Size:              raw.size,
	}
	var known byte
	switch v {
	case V22:
		known = flagUnsynchronisation | flagCompression
	case V23:
		known = flagUnsynchronisation | flagExtendedHeader | flagExperimental
		h.ExtendedHeader = raw.flags&flagExtendedHeader != 0
		h.Experimental = raw.flags&flagExperimental != 0
	case V24:
		known = flagUnsynchronisation | flagExtendedHeader | flagExperimental | flagFooterPresent
		h.ExtendedHeader = raw.flags&flagExtendedHeader != 0
		h.Experimental = raw.flags&flagExperimental != 0
		h.Footer = raw.flags&flagFooterPresent != 0
	}
	h.UnknownFlags = raw.flags&^known != 0
	return h
}

// readBody reads the remaining n on-disk bytes of the tag and reverses
// unsynchronization when it is active for the tag.
func readBody(src *source, unsync bool, n uint32) ([]byte, error) {
	raw, err := src.readExactly(int(n))
	if err != nil {
		return nil, err
	}
	if !unsync {
		return raw, nil
	}
	return Deunsynchronize(raw)
}

// readTagBytes reads n decoded bytes from the tag, streaming through the
// unsynchronization reversal when it is active. The second return value is
// the number of bytes actually consumed from the source, which exceeds n
// by one per stuffing byte skipped.
func readTagBytes(src *source, unsync bool, n uint32) ([]byte, uint32, error) {
	if !unsync {
		b, err := src.readExactly(int(n))
		return b, n, err
	}
	count := n
	b, err := readUnsynchronized(src, &count)
	return b, count, err
}

type bodyResult struct {
	data []byte
	err  error
}

// fetchBody issues the body read in the background so it can overlap the
// in-memory extended header parse. Callers must receive from the channel
// before touching src again, and must surface the extended header's error
// ahead of the body's when both fail.
func fetchBody(src *source, n uint32) <-chan bodyResult {
	ch := make(chan bodyResult, 1)
	go func() {
		b, err := src.readExactly(int(n))
		ch <- bodyResult{data: b, err: err}
	}()
	return ch
}
