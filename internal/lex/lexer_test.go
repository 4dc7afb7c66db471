package lex

import (
	"io"
	"strings"
	"testing"

	"github.com/nobie-org/pullxml/internal/bytesource"
	"github.com/nobie-org/pullxml/internal/decode"
)

func newLexer(t *testing.T, input string) *Lexer {
	t.Helper()
	src := bytesource.NewBlockingSource(strings.NewReader(input), bytesource.MinBufferSize)
	return New(decode.New(src, nil))
}

func drain(t *testing.T, l *Lexer) []Token {
	t.Helper()
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == KindEOF {
			return toks
		}
	}
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func assertKinds(t *testing.T, toks []Token, want ...Kind) {
	t.Helper()
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestLexStartTagWithAttributes(t *testing.T) {
	l := newLexer(t, `<a x="1" y='2'/>`)
	toks := drain(t, l)
	assertKinds(t, toks,
		KindOpenTag, KindNameOrNmtoken, // "a"
		KindNameOrNmtoken, KindEquals, KindQuoted, // x="1"
		KindNameOrNmtoken, KindEquals, KindQuoted, // y='2'
		KindEmptyElementEnd, KindEOF,
	)
	if toks[1].Text != "a" {
		t.Fatalf("element name = %q, want a", toks[1].Text)
	}
	if toks[4].Text != "1" || toks[4].Delim != '"' {
		t.Fatalf("first attr value = %q delim %q", toks[4].Text, toks[4].Delim)
	}
	if toks[7].Text != "2" || toks[7].Delim != '\'' {
		t.Fatalf("second attr value = %q delim %q", toks[7].Text, toks[7].Delim)
	}
}

func TestLexEndTag(t *testing.T) {
	l := newLexer(t, `</foo>`)
	toks := drain(t, l)
	assertKinds(t, toks, KindEndTagStart, KindNameOrNmtoken, KindCloseTag, KindEOF)
	if toks[1].Text != "foo" {
		t.Fatalf("end tag name = %q, want foo", toks[1].Text)
	}
}

func TestLexCharDataAndWhitespace(t *testing.T) {
	l := newLexer(t, "  \t\n")
	toks := drain(t, l)
	assertKinds(t, toks, KindWhitespace, KindEOF)
	if !toks[0].AllWhitespace {
		t.Fatalf("expected AllWhitespace=true")
	}
}

func TestLexCharDataStopsAtMarkup(t *testing.T) {
	l := newLexer(t, `hello<a/>`)
	toks := drain(t, l)
	assertKinds(t, toks, KindCharData, KindOpenTag, KindNameOrNmtoken, KindEmptyElementEnd, KindEOF)
	if toks[0].Text != "hello" {
		t.Fatalf("char data = %q, want hello", toks[0].Text)
	}
	if toks[0].AllWhitespace {
		t.Fatalf("expected AllWhitespace=false for non-whitespace content")
	}
}

func TestLexEntityRef(t *testing.T) {
	l := newLexer(t, `&amp;`)
	toks := drain(t, l)
	assertKinds(t, toks, KindEntityRef, KindEOF)
	if toks[0].Text != "amp" {
		t.Fatalf("entity name = %q, want amp", toks[0].Text)
	}
}

func TestLexDecimalCharRef(t *testing.T) {
	l := newLexer(t, `&#65;`)
	toks := drain(t, l)
	assertKinds(t, toks, KindCharRef, KindEOF)
	if toks[0].Rune != 'A' {
		t.Fatalf("char ref = %q, want A", toks[0].Rune)
	}
}

func TestLexHexCharRef(t *testing.T) {
	l := newLexer(t, `&#x41;`)
	toks := drain(t, l)
	assertKinds(t, toks, KindCharRef, KindEOF)
	if toks[0].Rune != 'A' {
		t.Fatalf("char ref = %q, want A", toks[0].Rune)
	}
}

func TestLexInvalidCharRefValue(t *testing.T) {
	l := newLexer(t, `&#0;`)
	_, err := l.Next()
	if err != ErrInvalidCharRef {
		t.Fatalf("err = %v, want ErrInvalidCharRef", err)
	}
}

func TestLexComment(t *testing.T) {
	l := newLexer(t, `<!-- hello -->`)
	toks := drain(t, l)
	assertKinds(t, toks, KindComment, KindEOF)
	if toks[0].Data != " hello " {
		t.Fatalf("comment data = %q, want %q", toks[0].Data, " hello ")
	}
}

func TestLexUnterminatedComment(t *testing.T) {
	l := newLexer(t, `<!-- hello`)
	_, err := l.Next()
	if err != ErrUnterminated {
		t.Fatalf("err = %v, want ErrUnterminated", err)
	}
}

func TestLexCDATASection(t *testing.T) {
	l := newLexer(t, `<![CDATA[a<b]]>`)
	toks := drain(t, l)
	assertKinds(t, toks, KindCDataSection, KindEOF)
	if toks[0].Data != "a<b" {
		t.Fatalf("cdata = %q, want a<b", toks[0].Data)
	}
}

func TestLexProcessingInstruction(t *testing.T) {
	l := newLexer(t, `<?target some data?>`)
	toks := drain(t, l)
	assertKinds(t, toks, KindPI, KindEOF)
	if toks[0].Target != "target" || toks[0].Data != "some data" {
		t.Fatalf("PI = target=%q data=%q", toks[0].Target, toks[0].Data)
	}
}

func TestLexDoctypeWithInternalSubset(t *testing.T) {
	l := newLexer(t, `<!DOCTYPE a [<!ENTITY x "1">]>`)
	toks := drain(t, l)
	assertKinds(t, toks, KindDoctype, KindEOF)
	if !strings.Contains(toks[0].Data, "<!ENTITY x \"1\">") {
		t.Fatalf("doctype data = %q", toks[0].Data)
	}
}

func TestLexEOFOnceThenError(t *testing.T) {
	l := newLexer(t, ``)
	tok, err := l.Next()
	if err != nil || tok.Kind != KindEOF {
		t.Fatalf("first Next() = %+v, %v, want KindEOF, nil", tok, err)
	}
	_, err = l.Next()
	if err != io.EOF {
		t.Fatalf("second Next() err = %v, want io.EOF", err)
	}
}

func TestLexMalformedBangMarkup(t *testing.T) {
	l := newLexer(t, `<!BOGUS>`)
	_, err := l.Next()
	if err != ErrMalformedMarkup {
		t.Fatalf("err = %v, want ErrMalformedMarkup", err)
	}
}
