package id3v2

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
)

// source wraps the caller's io.ReadSeeker with the cursor bookkeeping the
// parser needs: exact-length reads, rewinding for validate-then-reject,
// and a running count of consumed bytes so callers can locate the data
// that follows the tag.
type source struct {
	r io.ReadSeeker
	n int64 // bytes consumed since the parse began
}

func newSource(r io.ReadSeeker) *source {
	return &source{r: r}
}

// pos returns the number of bytes consumed so far.
func (s *source) pos() int64 { return s.n }

// readExactly reads exactly n bytes, failing with ErrUnexpectedEOF when
// the input runs out first. Bytes consumed by a failed read still count
// toward the cursor so rewindAll can restore the starting position.
func (s *source) readExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	s.n += int64(read)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(ErrUnexpectedEOF, "wanted %d bytes, got %d", n, read)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return buf, nil
}

func (s *source) readByte() (byte, error) {
	var buf [1]byte
	read, err := io.ReadFull(s.r, buf[:])
	s.n += int64(read)
	if err == io.EOF {
		return 0, errors.Wrap(ErrUnexpectedEOF, "wanted 1 byte")
	}
	if err != nil {
		return 0, errors.Wrap(err, "read")
	}
	return buf[0], nil
}

// skip discards n bytes, failing with ErrUnexpectedEOF if the input ends
// first.
func (s *source) skip(n int64) error {
	discarded, err := io.CopyN(ioutil.Discard, s.r, n)
	s.n += discarded
	if err == io.EOF {
		return errors.Wrapf(ErrUnexpectedEOF, "wanted to skip %d bytes, skipped %d", n, discarded)
	}
	return errors.Wrap(err, "skip")
}

// rewind moves the cursor back n bytes.
func (s *source) rewind(n int64) error {
	if _, err := s.r.Seek(-n, io.SeekCurrent); err != nil {
		return errors.Wrap(err, "rewind")
	}
	s.n -= n
	return nil
}

// rewindAll restores the position the source had when the parse began.
func (s *source) rewindAll() error {
	return s.rewind(s.n)
}
