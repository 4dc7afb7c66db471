package bytesource

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBlockingSourceReadsAllBytes(t *testing.T) {
	s := NewBlockingSource(strings.NewReader("hello"), MinBufferSize)
	var got []byte
	for {
		b, err := s.NextByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextByte: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestBlockingSourcePeekDoesNotConsume(t *testing.T) {
	s := NewBlockingSource(strings.NewReader("abc"), MinBufferSize)
	peeked, err := s.Peek(2)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if string(peeked) != "ab" {
		t.Fatalf("peeked = %q, want ab", peeked)
	}
	b, err := s.NextByte()
	if err != nil || b != 'a' {
		t.Fatalf("NextByte = %q, %v, want a, nil", b, err)
	}
}

func TestBlockingSourceDiscard(t *testing.T) {
	s := NewBlockingSource(strings.NewReader("abcdef"), MinBufferSize)
	if err := s.Discard(3); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	b, err := s.NextByte()
	if err != nil || b != 'd' {
		t.Fatalf("NextByte = %q, %v, want d, nil", b, err)
	}
}

func TestBlockingSourceRewrapPreservesPosition(t *testing.T) {
	s := NewBlockingSource(strings.NewReader("abcdef"), MinBufferSize)
	if _, err := s.NextByte(); err != nil {
		t.Fatalf("NextByte: %v", err)
	}
	err := s.Rewrap(func(r io.Reader) (io.Reader, error) {
		return r, nil
	})
	if err != nil {
		t.Fatalf("Rewrap: %v", err)
	}
	b, err := s.NextByte()
	if err != nil || b != 'b' {
		t.Fatalf("NextByte after rewrap = %q, %v, want b, nil", b, err)
	}
}

func TestChannelSourceReadsAllBytes(t *testing.T) {
	chunks := Pump(strings.NewReader("hello world"), MinBufferSize)
	s := NewChannelSource(chunks)
	var got []byte
	for {
		b, err := s.NextByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextByte: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want hello world", got)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestChannelSourcePropagatesTransportError(t *testing.T) {
	failure := io.ErrUnexpectedEOF
	chunks := Pump(errReader{err: failure}, MinBufferSize)
	s := NewChannelSource(chunks)
	_, err := s.NextByte()
	if err != failure {
		t.Fatalf("err = %v, want %v", err, failure)
	}
}

func TestChannelSourceAcrossMultipleChunks(t *testing.T) {
	data := bytes.Repeat([]byte("x"), MinBufferSize*2+10)
	chunks := Pump(bytes.NewReader(data), MinBufferSize)
	s := NewChannelSource(chunks)
	var got []byte
	for {
		b, err := s.NextByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextByte: %v", err)
		}
		got = append(got, b)
	}
	if len(got) != len(data) {
		t.Fatalf("got %d bytes, want %d", len(got), len(data))
	}
}
