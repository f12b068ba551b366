// Package tagcodec routes byte streams to registered metadata-tag codecs.
//
// Registration is explicit: the embedding program calls Register for each
// codec it wants during its own initialization. There are no blank-import
// side effects, so a program that only ever parses one version can call
// the codec package directly and skip the registry entirely.
package tagcodec

import (
	"io"

	"github.com/pkg/errors"
)

var ErrFormat = errors.New("tagcodec: unknown format")

// Tag is a parsed metadata tag. The concrete type depends on the format
// that produced it.
type Tag interface{}

// A Format describes one registered tag codec, identified by a magic
// number. Magic may contain "?" wildcards. Verify must leave the reader
// where it found it; Parse consumes the tag and leaves the reader at the
// first byte after it.
type Format struct {
	Name   string
	Magic  string
	Verify func(io.ReadSeeker) bool
	Parse  func(io.ReadSeeker) (Tag, error)
}

var formats []Format

// Register adds a format to the registry. Call it during program
// initialization, before any Detect or Parse.
func Register(f Format) {
	formats = append(formats, f)
}

// match reports whether magic matches b. Magic may contain "?" wildcards.
func match(magic string, b []byte) bool {
	if len(magic) != len(b) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Detect finds the registered format whose magic matches the next bytes
// of rs, confirming the match with the format's Verify when one is set.
// The reader is left at its original position.
func Detect(rs io.ReadSeeker) (Format, error) {
	for _, f := range formats {
		b := make([]byte, len(f.Magic))
		n, err := io.ReadFull(rs, b)
		if _, serr := rs.Seek(int64(-n), io.SeekCurrent); serr != nil {
			return Format{}, errors.Wrap(serr, "tagcodec: rewind")
		}
		if err != nil {
			continue
		}
		if match(f.Magic, b) && (f.Verify == nil || f.Verify(rs)) {
			return f, nil
		}
	}
	return Format{}, ErrFormat
}

// Parse detects the format of rs and decodes its tag, returning the tag
// and the name of the format that claimed it.
func Parse(rs io.ReadSeeker) (Tag, string, error) {
	f, err := Detect(rs)
	if err != nil {
		return nil, "", err
	}
	tag, err := f.Parse(rs)
	return tag, f.Name, err
}
