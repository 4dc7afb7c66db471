package bytesource

import (
	"bufio"
	"io"
)

// BlockingSource adapts an io.Reader to Source. NextByte blocks the
// calling goroutine for as long as the underlying Read does.
type BlockingSource struct {
	r *bufio.Reader
}

// NewBlockingSource wraps r with a buffer of at least MinBufferSize.
// If r is already a *bufio.Reader of sufficient size it is reused.
func NewBlockingSource(r io.Reader, bufferSize int) *BlockingSource {
	if br, ok := r.(*bufio.Reader); ok && br.Size() >= MinBufferSize {
		return &BlockingSource{r: br}
	}
	return &BlockingSource{r: bufio.NewReaderSize(r, normalizeBufferSize(bufferSize))}
}

// NextByte implements Source.
func (s *BlockingSource) NextByte() (byte, error) {
	if s == nil || s.r == nil {
		return 0, errNilReader
	}
	return s.r.ReadByte()
}

// Peek exposes the underlying buffer's look-ahead without consuming it.
// The decoder does not call it: it sniffs the BOM and XML declaration
// through its own prefetch window filled by NextByte.
func (s *BlockingSource) Peek(n int) ([]byte, error) {
	if s == nil || s.r == nil {
		return nil, errNilReader
	}
	return s.r.Peek(n)
}

// Discard consumes n already-peeked bytes.
func (s *BlockingSource) Discard(n int) error {
	if s == nil || s.r == nil {
		return errNilReader
	}
	_, err := s.r.Discard(n)
	return err
}

// Rewrap replaces the underlying reader with fn applied to the current
// one, preserving read position. It is used to splice in a charset
// transform (e.g. Latin-1 to UTF-8) once a declared encoding has been
// read from the XML declaration, without losing any buffered bytes.
func (s *BlockingSource) Rewrap(fn func(io.Reader) (io.Reader, error)) error {
	if s == nil || s.r == nil {
		return errNilReader
	}
	wrapped, err := fn(s.r)
	if err != nil {
		return err
	}
	s.r = bufio.NewReaderSize(wrapped, s.r.Size())
	return nil
}
