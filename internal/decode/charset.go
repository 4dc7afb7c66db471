package decode

import (
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultCharsetReader recognizes a handful of non-Unicode encoding
// labels (Latin-1, Windows-1252, ASCII) and wraps r with the matching
// golang.org/x/text decoder, transcoding to UTF-8.
func DefaultCharsetReader(label string, r io.Reader) (io.Reader, error) {
	enc, ok := lookupCharmap(label)
	if !ok {
		return nil, ErrInvalidEncoding
	}
	return enc.NewDecoder().Reader(r), nil
}

func lookupCharmap(label string) (encoding.Encoding, bool) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "l1":
		return charmap.ISO8859_1, true
	case "windows-1252", "cp1252":
		return charmap.Windows1252, true
	case "us-ascii", "ascii":
		return encoding.Nop, true
	default:
		return nil, false
	}
}
