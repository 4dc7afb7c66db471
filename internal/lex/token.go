// Package lex implements the lexer: a classifier, not a validator,
// that turns the decoded code-point stream from internal/decode into
// a sequence of lexical tokens. Structural rules (well-formedness,
// attribute uniqueness, nesting) are the pull parser's job, not the
// lexer's.
package lex

import "github.com/nobie-org/pullxml/internal/decode"

// Kind identifies a lexical token kind.
type Kind int

const (
	KindEOF Kind = iota
	KindOpenTag        // '<' immediately followed by a name start character
	KindEndTagStart     // "</"
	KindCloseTag        // '>'
	KindEmptyElementEnd // "/>"
	KindEquals          // '='
	KindQuoted          // a quoted attribute value, delimiter stripped
	KindNameOrNmtoken   // a Name or Nmtoken
	KindEntityRef       // "&name;", unresolved
	KindCharRef         // "&#NNN;" or "&#xHH;", already decoded to a rune
	KindCharData        // a run of character data
	KindWhitespace      // a run of whitespace outside any tag
	KindPI              // a complete "<?target data?>"
	KindComment         // a complete "<!-- text -->"
	KindCDataSection    // a complete "<![CDATA[ text ]]>"
	KindDoctype         // a complete "<!DOCTYPE ...>" (internal subset verbatim)
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindOpenTag:
		return "OpenTag"
	case KindEndTagStart:
		return "EndTagStart"
	case KindCloseTag:
		return "CloseTag"
	case KindEmptyElementEnd:
		return "EmptyElementEnd"
	case KindEquals:
		return "Equals"
	case KindQuoted:
		return "Quoted"
	case KindNameOrNmtoken:
		return "NameOrNmtoken"
	case KindEntityRef:
		return "EntityRef"
	case KindCharRef:
		return "CharRef"
	case KindCharData:
		return "CharData"
	case KindWhitespace:
		return "Whitespace"
	case KindPI:
		return "PI"
	case KindComment:
		return "Comment"
	case KindCDataSection:
		return "CDataSection"
	case KindDoctype:
		return "Doctype"
	default:
		return "Unknown"
	}
}

// Token is one lexical token. Which fields are meaningful depends on
// Kind; see the Kind constant doc comments above.
type Token struct {
	Kind Kind
	Pos  decode.Position

	Text string // NameOrNmtoken, Quoted (content), CharData/Whitespace, EntityRef (name)
	Rune rune   // CharRef: the decoded code point

	Target string // PI: target name
	Data   string // PI: data; Comment/CDataSection: text; Doctype: verbatim text after "DOCTYPE"

	AllWhitespace bool // CharData: true when Text is entirely XML whitespace
	Delim         byte // Quoted: the quote character used, '"' or '\''
}
