package lex

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nobie-org/pullxml/internal/decode"
)

var (
	// ErrUnterminated is returned when a '<?', '<!--', '<![CDATA[' or
	// '<!DOCTYPE' construct runs into EOF before its closing delimiter.
	ErrUnterminated = errors.New("lex: unterminated construct")
	// ErrMalformedMarkup is returned for bytes that cannot begin any
	// lexical token in the position the lexer is in (e.g. a bare '<!'
	// not followed by "--", "[CDATA[" or "DOCTYPE").
	ErrMalformedMarkup = errors.New("lex: malformed markup")
	// ErrInvalidCharRef is returned for a "&#...;" whose digits do not
	// form a valid character reference, or whose decoded value fails
	// the XML Char check.
	ErrInvalidCharRef = errors.New("lex: invalid character reference")
	// ErrInvalidName is returned when a Name or Nmtoken is expected but
	// the next character cannot start or continue one.
	ErrInvalidName = errors.New("lex: invalid name")
)

// mode tracks which lexical context the lexer is in: content text is
// classified differently from text inside a start/end tag, and
// bracketed constructs (PI, comment, CDATA, DOCTYPE) are each
// consumed wholesale by their own scanner.
type mode int

const (
	modeContent mode = iota
	modeTag
)

// Lexer turns a decode.Decoder's code-point stream into Tokens. It
// performs no structural validation: a Quoted token after an
// EmptyElementEnd, or two consecutive NameOrNmtoken tokens, is the pull
// parser's problem, not the lexer's.
type Lexer struct {
	dec  *decode.Decoder
	mode mode

	peeked   bool
	peekRune rune
	peekPos  decode.Position
	peekErr  error

	eofSent bool
}

// New creates a Lexer reading from dec.
func New(dec *decode.Decoder) *Lexer {
	return &Lexer{dec: dec, mode: modeContent}
}

func (l *Lexer) next() (rune, decode.Position, error) {
	if l.peeked {
		l.peeked = false
		return l.peekRune, l.peekPos, l.peekErr
	}
	return l.dec.NextRune()
}

func (l *Lexer) peek() (rune, decode.Position, error) {
	if !l.peeked {
		l.peekRune, l.peekPos, l.peekErr = l.dec.NextRune()
		l.peeked = true
	}
	return l.peekRune, l.peekPos, l.peekErr
}

// Next returns the next token. At end of input it returns a token with
// Kind == KindEOF and a nil error exactly once; Next after that returns
// io.EOF.
func (l *Lexer) Next() (Token, error) {
	if l.eofSent {
		return Token{}, io.EOF
	}
	r, pos, err := l.peek()
	if err != nil {
		if err == io.EOF {
			l.peeked = false
			l.eofSent = true
			return Token{Kind: KindEOF, Pos: pos}, nil
		}
		return Token{}, err
	}

	if l.mode == modeTag {
		return l.lexInTag()
	}

	switch r {
	case '<':
		l.peeked = false
		return l.lexMarkupStart(pos)
	case '&':
		l.peeked = false
		return l.lexReference(pos)
	default:
		return l.lexCharData(pos)
	}
}

// lexMarkupStart is entered right after consuming the '<' that starts
// any of: start-tag, end-tag, PI, comment, CDATA section, or DOCTYPE.
func (l *Lexer) lexMarkupStart(pos decode.Position) (Token, error) {
	r, _, err := l.peek()
	if err != nil && err != io.EOF {
		return Token{}, err
	}
	switch {
	case err == io.EOF:
		return Token{}, ErrUnterminated
	case r == '/':
		l.peeked = false
		l.mode = modeTag
		return Token{Kind: KindEndTagStart, Pos: pos}, nil
	case r == '?':
		l.peeked = false
		return l.lexPI(pos)
	case r == '!':
		l.peeked = false
		return l.lexBang(pos)
	case isNameStartChar(r):
		l.mode = modeTag
		return Token{Kind: KindOpenTag, Pos: pos}, nil
	default:
		return Token{}, ErrMalformedMarkup
	}
}

func (l *Lexer) lexBang(pos decode.Position) (Token, error) {
	if l.consumeLiteral("--") {
		return l.lexComment(pos)
	}
	if l.consumeLiteral("[CDATA[") {
		return l.lexCDATA(pos)
	}
	if l.consumeLiteral("DOCTYPE") {
		return l.lexDoctype(pos)
	}
	return Token{}, ErrMalformedMarkup
}

// consumeLiteral consumes exactly s from the stream if it matches,
// using the single-rune peek buffer for the first character only; the
// rest are read directly since no caller needs to back out partway.
func (l *Lexer) consumeLiteral(s string) bool {
	first, _, err := l.peek()
	if err != nil || first != rune(s[0]) {
		return false
	}
	l.peeked = false
	for _, want := range s[1:] {
		r, _, err := l.dec.NextRune()
		if err != nil || r != want {
			return false
		}
	}
	return true
}

func (l *Lexer) lexComment(pos decode.Position) (Token, error) {
	var b strings.Builder
	for {
		r, _, err := l.dec.NextRune()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if r == '-' {
			r2, _, err := l.dec.NextRune()
			if err != nil {
				if err == io.EOF {
					return Token{}, ErrUnterminated
				}
				return Token{}, err
			}
			if r2 == '-' {
				r3, _, err := l.dec.NextRune()
				if err != nil {
					if err == io.EOF {
						return Token{}, ErrUnterminated
					}
					return Token{}, err
				}
				if r3 == '>' {
					return Token{Kind: KindComment, Pos: pos, Data: b.String()}, nil
				}
				// "--" not followed by '>' is forbidden inside comments,
				// but that is a well-formedness rule, not the lexer's to
				// enforce; pass it through verbatim. The pull parser does
				// not re-check this either: a Comment event's Text may
				// contain "--" unrejected.
				b.WriteByte('-')
				b.WriteByte('-')
				b.WriteRune(r3)
				continue
			}
			b.WriteByte('-')
			b.WriteRune(r2)
			continue
		}
		b.WriteRune(r)
	}
}

func (l *Lexer) lexCDATA(pos decode.Position) (Token, error) {
	var b strings.Builder
	brackets := 0
	for {
		r, _, err := l.dec.NextRune()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if r == ']' {
			brackets++
			continue
		}
		if r == '>' && brackets >= 2 {
			b.WriteString(strings.Repeat("]", brackets-2))
			return Token{Kind: KindCDataSection, Pos: pos, Data: b.String()}, nil
		}
		b.WriteString(strings.Repeat("]", brackets))
		brackets = 0
		b.WriteRune(r)
	}
}

func (l *Lexer) lexDoctype(pos decode.Position) (Token, error) {
	var b strings.Builder
	depth := 0
	for {
		r, _, err := l.dec.NextRune()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				return Token{Kind: KindDoctype, Pos: pos, Data: b.String()}, nil
			}
		}
		b.WriteRune(r)
	}
}

func (l *Lexer) lexPI(pos decode.Position) (Token, error) {
	target, err := l.scanName()
	if err != nil {
		return Token{}, err
	}
	for {
		r, _, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if !isXMLWhitespace(r) {
			break
		}
		l.peeked = false
	}
	var b strings.Builder
	for {
		r, _, err := l.next()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if r == '?' {
			if l.consumeLiteral(">") {
				return Token{Kind: KindPI, Pos: pos, Target: target, Data: b.String()}, nil
			}
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
}

// lexInTag classifies the content between '<'/'</'...'>' or '/>'.
// Leading whitespace is silently skipped, matching its role there as
// pure attribute separator rather than significant content.
func (l *Lexer) lexInTag() (Token, error) {
	for {
		r, pos, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if isXMLWhitespace(r) {
			l.peeked = false
			continue
		}
		switch r {
		case '>':
			l.peeked = false
			l.mode = modeContent
			return Token{Kind: KindCloseTag, Pos: pos}, nil
		case '=':
			l.peeked = false
			return Token{Kind: KindEquals, Pos: pos}, nil
		case '/':
			l.peeked = false
			if !l.consumeLiteral(">") {
				return Token{}, ErrMalformedMarkup
			}
			l.mode = modeContent
			return Token{Kind: KindEmptyElementEnd, Pos: pos}, nil
		case '"', '\'':
			l.peeked = false
			return l.lexQuoted(pos, byte(r))
		default:
			if isNameStartChar(r) {
				name, err := l.scanName()
				if err != nil {
					return Token{}, err
				}
				return Token{Kind: KindNameOrNmtoken, Pos: pos, Text: name}, nil
			}
			return Token{}, ErrMalformedMarkup
		}
	}
}

func (l *Lexer) lexQuoted(pos decode.Position, delim byte) (Token, error) {
	var b strings.Builder
	for {
		r, _, err := l.dec.NextRune()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if byte(r) == delim && r < 0x80 {
			return Token{Kind: KindQuoted, Pos: pos, Text: b.String(), Delim: delim}, nil
		}
		b.WriteRune(r)
	}
}

// lexCharData scans a run of character data up to the next '<' or '&',
// reporting whether it was entirely XML whitespace so the pull parser
// can apply trim_whitespace / ignore_root_level_whitespace policy
// without rescanning.
func (l *Lexer) lexCharData(pos decode.Position) (Token, error) {
	var b strings.Builder
	allWS := true
	for {
		r, _, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Token{}, err
		}
		if r == '<' || r == '&' {
			break
		}
		l.peeked = false
		if !isXMLWhitespace(r) {
			allWS = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		// Nothing but an immediate '<', '&' or EOF; let the caller loop
		// back into Next rather than emit an empty token.
		return l.Next()
	}
	kind := KindCharData
	if allWS {
		kind = KindWhitespace
	}
	return Token{Kind: kind, Pos: pos, Text: b.String(), AllWhitespace: allWS}, nil
}

// lexReference classifies "&name;" vs "&#...;"; CharRef decoding and
// Char-range validation happen here since both are purely lexical,
// unlike EntityRef resolution which needs the entity table.
func (l *Lexer) lexReference(pos decode.Position) (Token, error) {
	r, _, err := l.dec.NextRune()
	if err != nil {
		if err == io.EOF {
			return Token{}, ErrUnterminated
		}
		return Token{}, err
	}
	if r != '#' {
		name, err := l.scanNameFrom(r)
		if err != nil {
			return Token{}, err
		}
		if !l.consumeLiteral(";") {
			return Token{}, ErrMalformedMarkup
		}
		return Token{Kind: KindEntityRef, Pos: pos, Text: name}, nil
	}

	hex := false
	next, _, err := l.peek()
	if err == nil && (next == 'x' || next == 'X') {
		l.peeked = false
		hex = true
	}
	var digits strings.Builder
	for {
		r, _, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return Token{}, ErrUnterminated
			}
			return Token{}, err
		}
		if r == ';' {
			l.peeked = false
			break
		}
		l.peeked = false
		digits.WriteRune(r)
	}
	base := 10
	if hex {
		base = 16
	}
	val, err := strconv.ParseUint(digits.String(), base, 32)
	if err != nil {
		return Token{}, ErrInvalidCharRef
	}
	if !isValidCharRefValue(rune(val)) {
		return Token{}, ErrInvalidCharRef
	}
	return Token{Kind: KindCharRef, Pos: pos, Rune: rune(val)}, nil
}

func (l *Lexer) scanName() (string, error) {
	r, _, err := l.next()
	if err != nil {
		if err == io.EOF {
			return "", ErrInvalidName
		}
		return "", err
	}
	return l.scanNameFrom(r)
}

func (l *Lexer) scanNameFrom(first rune) (string, error) {
	if !isNameStartChar(first) {
		return "", ErrInvalidName
	}
	var b strings.Builder
	b.WriteRune(first)
	for {
		r, _, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
		if !isNameChar(r) {
			break
		}
		l.peeked = false
		b.WriteRune(r)
	}
	return b.String(), nil
}

func isXMLWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isValidCharRefValue(r rune) bool {
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

// isNameStartChar and isNameChar implement a practical ASCII-plus-Unicode
// letter approximation of the XML 1.0 NameStartChar / NameChar
// productions.
func isNameStartChar(r rune) bool {
	switch {
	case r == ':' || r == '_':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= 0xC0 && r != 0xD7 && r != 0xF7:
		return utf8.ValidRune(r)
	default:
		return false
	}
}

func isNameChar(r rune) bool {
	if isNameStartChar(r) {
		return true
	}
	switch {
	case r == '-' || r == '.':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == 0xB7:
		return true
	default:
		return false
	}
}
