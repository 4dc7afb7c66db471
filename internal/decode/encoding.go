package decode

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
)

const maxDeclScan = 1024

// detectEncoding runs the BOM-then-declaration sniffing algorithm.
// BOM bytes, when found, are discarded. Sniffed-but-not-BOM bytes (the
// leading "<?xml" or its UTF-16 byte-swapped form) stay in the
// prefetch buffer to be decoded normally afterward.
func (d *Decoder) detectEncoding() error {
	head, err := d.fillPrefetch(4)
	if err != nil && err != io.EOF {
		return err
	}

	switch {
	case len(head) >= 2 && head[0] == 0xFE && head[1] == 0xFF:
		d.enc = UTF16BE
		d.consumePrefetch(2)
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xFE:
		d.enc = UTF16LE
		d.consumePrefetch(2)
	case len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF:
		d.enc = UTF8
		d.consumePrefetch(3)
	case len(head) >= 4 && bytes.Equal(head, []byte{0x00, 0x3C, 0x00, 0x3F}):
		d.enc = UTF16BE
	case len(head) >= 4 && bytes.Equal(head, []byte{0x3C, 0x00, 0x3F, 0x00}):
		d.enc = UTF16LE
	default:
		d.enc = UTF8
	}

	return d.checkDeclaredEncoding()
}

// checkDeclaredEncoding scans an optional leading <?xml ... encoding="x"?>
// declaration (without consuming it) and fails if the declared label
// disagrees with the sniffed family, or applies a CharsetReader when the
// label names a non-Unicode charset.
func (d *Decoder) checkDeclaredEncoding() error {
	// For UTF-8 input the scan stops right after the first "?>", so that
	// no byte past the declaration sits in the prefetch window when a
	// charset switch is installed below.
	var raw []byte
	var err error
	for n := 1; n <= maxDeclScan; n++ {
		raw, err = d.fillPrefetch(n)
		if err != nil || (d.enc == UTF8 && bytes.HasSuffix(raw, []byte("?>"))) {
			break
		}
	}
	if err != nil && err != io.EOF {
		return err
	}
	text := decodeRunesBestEffort(raw, d.enc)
	if !strings.HasPrefix(text, "<?xml") {
		return nil
	}
	end := strings.Index(text, "?>")
	if end < 0 {
		return nil
	}
	label := parseDeclEncoding(text[:end])
	if label == "" {
		return nil
	}
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		if d.enc != UTF8 {
			return ErrInvalidEncoding
		}
	case "utf-16", "utf-16le":
		if d.enc != UTF16LE && d.enc != UTF16BE {
			return ErrInvalidEncoding
		}
	case "utf-16be":
		if d.enc != UTF16BE {
			return ErrInvalidEncoding
		}
	default:
		if d.enc != UTF8 {
			return ErrInvalidEncoding
		}
		if err := d.switchToCharsetReader(label); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) switchToCharsetReader(label string) error {
	if _, ok := d.src.(rewrapper); !ok {
		return ErrInvalidEncoding
	}
	cr := d.charsetReader
	if cr == nil {
		cr = DefaultCharsetReader
	}
	// The prefetched bytes (BOM-less, ASCII-compatible decl) are decoded
	// as-is; the switch only affects bytes read after the declaration,
	// which is correct because "encoding=\"...\"" is pure ASCII under
	// every label this function accepts, so deferring the rewrap until
	// the prefetch window drains never transcodes already-read bytes.
	d.charsetSwitch = func(r io.Reader) (io.Reader, error) { return cr(label, r) }
	return nil
}

// decodeRunesBestEffort decodes as much of raw as is well-formed under
// enc, stopping at the first error instead of failing; it is used only
// for declaration sniffing, where partial/garbled tails are tolerated.
func decodeRunesBestEffort(raw []byte, enc Encoding) string {
	var b strings.Builder
	switch enc {
	case UTF16LE, UTF16BE:
		for len(raw) >= 2 {
			var unit uint16
			if enc == UTF16LE {
				unit = uint16(raw[0]) | uint16(raw[1])<<8
			} else {
				unit = uint16(raw[1]) | uint16(raw[0])<<8
			}
			raw = raw[2:]
			if unit >= 0xD800 && unit <= 0xDBFF {
				break
			}
			b.WriteRune(rune(unit))
		}
	default:
		for len(raw) > 0 {
			r, size := utf8.DecodeRune(raw)
			if r == utf8.RuneError && size <= 1 {
				break
			}
			b.WriteRune(r)
			raw = raw[size:]
		}
	}
	return b.String()
}

func parseDeclEncoding(decl string) string {
	const needle = "encoding"
	i := strings.Index(decl, needle)
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(decl[i+len(needle):], " \t\r\n")
	if len(rest) == 0 || rest[0] != '=' {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if len(rest) == 0 {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
