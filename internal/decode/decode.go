// Package decode implements the character-level decoder: BOM and
// <?xml?> encoding sniffing, UTF-8/UTF-16/Latin-1 decoding to Unicode
// code points, line/column tracking, CRLF normalization, and XML 1.0
// Char-range validation. It pulls bytes from a
// internal/bytesource.Source and is itself pulled from by
// internal/lex.Lexer.
package decode

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/nobie-org/pullxml/internal/bytesource"
)

// Encoding identifies the byte-to-codepoint mapping in effect.
type Encoding int

const (
	// UTF8 is the default encoding when no BOM and no contradicting
	// declaration are present.
	UTF8 Encoding = iota
	UTF16LE
	UTF16BE
	// Other covers any encoding handled via a CharsetReader, decoded as
	// a byte stream already transcoded to UTF-8 by the wrapper.
	Other
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	default:
		return "other"
	}
}

var (
	// ErrUnexpectedEOF is returned when the stream ends inside a
	// multi-byte sequence or a construct that requires more input.
	ErrUnexpectedEOF = errors.New("decode: unexpected end of input")
	// ErrInvalidCharacter is returned for a byte or code point forbidden
	// by the XML 1.0 Char production.
	ErrInvalidCharacter = errors.New("decode: invalid XML character")
	// ErrInvalidEncoding is returned when a declared encoding conflicts
	// with the sniffed byte-order family, or names an encoding with no
	// registered CharsetReader.
	ErrInvalidEncoding = errors.New("decode: invalid or unsupported encoding")
	// ErrDecode wraps a malformed byte sequence for the active encoding.
	ErrDecode = errors.New("decode: malformed byte sequence")

	// ErrEntityExpansionTooDeep is returned by PushExpansion when the
	// nesting depth cap would be exceeded.
	ErrEntityExpansionTooDeep = errors.New("decode: entity expansion nesting too deep")
	// ErrEntityExpansionTooLong is returned by NextRune when the
	// cumulative expanded length cap for the active top-level reference
	// is exceeded.
	ErrEntityExpansionTooLong = errors.New("decode: entity expansion too long")
	// ErrEntityExpansionRecursive is returned by PushExpansion when an
	// entity's expansion refers back to itself, directly or through
	// another active frame.
	ErrEntityExpansionRecursive = errors.New("decode: recursive entity expansion")
)

// Position is a source location: 0-based byte offset plus 1-based
// line and column.
type Position struct {
	ByteOffset int64
	Line       int
	Column     int
}

// CharsetReader transcodes a non-Unicode byte stream to one decode can
// treat as UTF-8, keyed by the label named in an <?xml encoding="..."?>
// declaration. The default implementation is DefaultCharsetReader.
type CharsetReader func(label string, r io.Reader) (io.Reader, error)

// rewrapper is implemented by byte sources that support mid-stream
// charset switching (currently only bytesource.BlockingSource).
type rewrapper interface {
	Rewrap(func(io.Reader) (io.Reader, error)) error
}

// Decoder is the character-level decoder. It also owns a stack of
// active input sources for entity expansion: pushed frames are plain
// decoded text (already UTF-8), consulted ahead of the byte-level
// source, and popped automatically at their own EOF.
type Decoder struct {
	src           bytesource.Source
	charsetReader CharsetReader
	charsetSwitch func(io.Reader) (io.Reader, error)

	enc      Encoding
	detected bool

	offset int64
	line   int
	column int

	pendingRune *rune

	// prefetch holds raw bytes read ahead for BOM/declaration sniffing
	// that have not yet been consumed by Decode.
	prefetch    []byte
	prefetchPos int

	stack []expansionFrame

	// expansionLen is the cumulative count of characters yielded while
	// stack is non-empty, reset each time a *new* top-level reference
	// is pushed (len(stack) goes 0 -> 1). expansionMax is the cap that
	// applies to that counter until the stack returns to empty.
	expansionLen int
	expansionMax int
}

type expansionFrame struct {
	name     string
	text     string
	idx      int
	maxDepth int
}

// New creates a Decoder pulling from src. charsetReader may be nil, in
// which case DefaultCharsetReader handles non-Unicode declared
// encodings.
func New(src bytesource.Source, charsetReader CharsetReader) *Decoder {
	return &Decoder{
		src:           src,
		charsetReader: charsetReader,
		line:          1,
		column:        1,
	}
}

// Encoding reports the encoding family in effect after the first read.
func (d *Decoder) Encoding() Encoding {
	return d.enc
}

// Offset reports the current byte offset of the bottom-level stream.
// It does not advance while reading from a pushed entity-expansion
// frame.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Pos reports the position of the next rune NextRune would return,
// for error reporting when no rune has actually been read yet.
func (d *Decoder) Pos() Position {
	return Position{ByteOffset: d.offset, Line: d.line, Column: d.column}
}

// NextRune returns the next Unicode code point and its starting
// position, preferring the topmost pushed expansion frame when one is
// active. io.EOF is returned only when the bottom-level stream (not an
// expansion frame) is exhausted.
func (d *Decoder) NextRune() (rune, Position, error) {
	for len(d.stack) > 0 {
		top := &d.stack[len(d.stack)-1]
		if top.idx >= len(top.text) {
			d.stack = d.stack[:len(d.stack)-1]
			continue
		}
		r, size := utf8.DecodeRuneInString(top.text[top.idx:])
		if r == utf8.RuneError && size <= 1 {
			return 0, Position{}, ErrDecode
		}
		top.idx += size
		if !isValidXMLChar(r) {
			return 0, Position{}, ErrInvalidCharacter
		}
		d.expansionLen++
		if d.expansionMax > 0 && d.expansionLen > d.expansionMax {
			return 0, Position{}, ErrEntityExpansionTooLong
		}
		return r, Position{ByteOffset: d.offset, Line: d.line, Column: d.column}, nil
	}

	if !d.detected {
		if err := d.detectEncoding(); err != nil {
			return 0, Position{}, err
		}
		d.detected = true
	}

	pos := Position{ByteOffset: d.offset, Line: d.line, Column: d.column}
	r, err := d.readRune()
	if err != nil {
		return 0, Position{}, err
	}
	if r == '\n' {
		d.line++
		d.column = 1
	} else {
		d.column++
	}
	return r, pos, nil
}

// PushExpansion makes text the source of subsequent NextRune calls
// until it is exhausted. name is used for recursion detection:
// pushing a name already active on the stack
// fails with ErrEntityExpansionRecursive. maxDepth bounds len(stack)+1;
// maxLen bounds the cumulative character count across this and any
// nested expansions until the stack next drains to empty.
func (d *Decoder) PushExpansion(name, text string, maxDepth, maxLen int) error {
	if maxDepth > 0 && len(d.stack)+1 > maxDepth {
		return ErrEntityExpansionTooDeep
	}
	for _, frame := range d.stack {
		if frame.name == name {
			return ErrEntityExpansionRecursive
		}
	}
	if len(d.stack) == 0 {
		d.expansionLen = 0
		d.expansionMax = maxLen
	}
	d.stack = append(d.stack, expansionFrame{name: name, text: text, maxDepth: maxDepth})
	return nil
}

// ExpansionDepth reports the current entity-expansion nesting depth.
func (d *Decoder) ExpansionDepth() int {
	return len(d.stack)
}

func isValidXMLChar(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}
