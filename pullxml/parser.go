package pullxml

import (
	"errors"
	"strings"

	"github.com/nobie-org/pullxml/internal/bytesource"
	"github.com/nobie-org/pullxml/internal/decode"
	"github.com/nobie-org/pullxml/internal/lex"
)

// errEndDocument signals the outer state machine reached the natural
// end of input; NextEvent turns it into a (cached) EndDocument event
// rather than a latched error.
var errEndDocument = errors.New("pullxml: end of document")

type elemFrame struct {
	name    QualifiedName
	nsIndex int
}

// Parser is the outer state machine that wires lexer tokens into
// events. One operation, NextEvent, drives
// Start -> Prolog -> DocumentElement -> Epilog -> End.
type Parser struct {
	lx       *lex.Lexer
	dec      *decode.Decoder
	cfg      Config
	entities *entityTable
	ns       *nsStack
	elems    []elemFrame

	pending    *lex.Token
	pendingEnd *Event

	started    bool
	rootSeen   bool
	doctypeSeen bool
	endEmitted bool
	latchedErr error
}

// NewParser builds a Parser reading from src. charsetReader may be
// nil, in which case decode.DefaultCharsetReader handles non-Unicode
// declared encodings.
func NewParser(src bytesource.Source, cfg Config, charsetReader decode.CharsetReader) *Parser {
	dec := decode.New(src, charsetReader)
	return &Parser{
		lx:       lex.New(dec),
		dec:      dec,
		cfg:      cfg,
		entities: newEntityTable(cfg.extraEntities),
		ns:       &nsStack{},
	}
}

// NextEvent returns the next event in document order, or an error
// with position. Errors latch and repeat verbatim on every subsequent
// call, but EndDocument is NOT an error: once reached, it is returned
// again on every further call.
func (p *Parser) NextEvent() (Event, error) {
	if p.latchedErr != nil {
		return Event{}, p.latchedErr
	}
	if p.endEmitted {
		return Event{Kind: KindEndDocument}, nil
	}
	var ev Event
	var err error
	if !p.started {
		p.started = true
		ev, err = p.emitStartDocument()
	} else {
		ev, err = p.advance()
	}
	if err != nil {
		if err == errEndDocument {
			p.endEmitted = true
			return Event{Kind: KindEndDocument}, nil
		}
		p.latchedErr = err
		return Event{}, err
	}
	return ev, nil
}

func (p *Parser) nextToken() (lex.Token, error) {
	if p.pending != nil {
		t := *p.pending
		p.pending = nil
		return t, nil
	}
	t, err := p.lx.Next()
	if err != nil {
		return lex.Token{}, p.wrapErr(err)
	}
	return t, nil
}

// wrapErr attaches the decoder's current position to any error not
// already a *SyntaxError, and translates the lower layers' sentinel
// errors into this package's own error taxonomy.
func (p *Parser) wrapErr(err error) error {
	if se, ok := err.(*SyntaxError); ok {
		return se
	}
	return newSyntaxError(p.dec.Pos(), mapLowerErr(err))
}

func mapLowerErr(err error) error {
	switch err {
	case lex.ErrUnterminated:
		return ErrUnterminatedConstruct
	case lex.ErrMalformedMarkup:
		return ErrUnexpectedToken
	case lex.ErrInvalidName:
		return ErrBadName
	case lex.ErrInvalidCharRef:
		return ErrBadCharRef
	case decode.ErrEntityExpansionTooDeep:
		return ErrEntityExpansionTooDeep
	case decode.ErrEntityExpansionTooLong:
		return ErrEntityExpansionTooLong
	case decode.ErrEntityExpansionRecursive:
		return ErrEntityExpansionRecursive
	default:
		return err
	}
}

func (p *Parser) emitStartDocument() (Event, error) {
	tok, err := p.nextToken()
	if err != nil {
		return Event{}, err
	}
	version := "1.0"
	encoding := p.dec.Encoding().String()
	standalone := StandaloneAbsent
	if tok.Kind == lex.KindPI && strings.EqualFold(tok.Target, "xml") {
		v, e, s := parseXMLDecl(tok.Data)
		if v != "" {
			if v != "1.0" && v != "1.1" {
				return Event{}, newSyntaxError(tok.Pos, ErrUnsupportedXMLVersion)
			}
			version = v
		}
		if e != "" {
			encoding = e
		}
		standalone = s
	} else {
		p.pending = &tok
	}
	return Event{
		Kind:       KindStartDocument,
		Pos:        decode.Position{Line: 1, Column: 1},
		Version:    version,
		Encoding:   encoding,
		Standalone: standalone,
	}, nil
}

// advance runs the outer state machine until it can return exactly
// one event. It is re-entered on every NextEvent call after the
// first.
func (p *Parser) advance() (Event, error) {
	if p.pendingEnd != nil {
		ev := *p.pendingEnd
		p.pendingEnd = nil
		return ev, nil
	}
	for {
		tok, err := p.nextToken()
		if err != nil {
			return Event{}, err
		}
		inEpilog := p.rootSeen && len(p.elems) == 0
		inProlog := !p.rootSeen

		switch tok.Kind {
		case lex.KindEOF:
			if inProlog {
				return Event{}, newSyntaxError(tok.Pos, ErrMissingRootElement)
			}
			if !inEpilog {
				return Event{}, newSyntaxError(tok.Pos, ErrUnterminatedConstruct)
			}
			return Event{}, errEndDocument

		case lex.KindPI:
			return p.handlePI(tok)

		case lex.KindComment:
			if p.cfg.ignoreComments {
				continue
			}
			return Event{Kind: KindComment, Pos: tok.Pos, Text: tok.Data}, nil

		case lex.KindDoctype:
			if !inProlog {
				return Event{}, newSyntaxError(tok.Pos, ErrDoctypeAfterRoot)
			}
			if p.doctypeSeen {
				return Event{}, newSyntaxError(tok.Pos, ErrMultipleDoctypes)
			}
			p.doctypeSeen = true
			p.scanDoctypeEntities(tok.Data)
			return Event{Kind: KindDoctypeDeclaration, Pos: tok.Pos, Text: tok.Data}, nil

		case lex.KindWhitespace:
			if (inProlog || inEpilog) && p.cfg.ignoreRootLevelWhitespace {
				continue
			}
			if !p.cfg.whitespaceToCharacters {
				continue
			}
			return p.handleText(tok)

		case lex.KindOpenTag:
			if inEpilog {
				return Event{}, newSyntaxError(tok.Pos, ErrExtraContentAfterRoot)
			}
			return p.handleStartElement(tok)

		case lex.KindEndTagStart:
			return p.handleEndElement(tok)

		case lex.KindCharData, lex.KindEntityRef, lex.KindCharRef, lex.KindCDataSection:
			if inProlog {
				return Event{}, newSyntaxError(tok.Pos, ErrUnexpectedToken)
			}
			if inEpilog {
				return Event{}, newSyntaxError(tok.Pos, ErrExtraContentAfterRoot)
			}
			return p.handleText(tok)

		default:
			return Event{}, newSyntaxError(tok.Pos, ErrUnexpectedToken)
		}
	}
}

func (p *Parser) handlePI(tok lex.Token) (Event, error) {
	if strings.EqualFold(tok.Target, "xml") {
		return Event{}, newSyntaxError(tok.Pos, ErrUnexpectedToken)
	}
	return Event{Kind: KindProcessingInstruction, Pos: tok.Pos, Target: tok.Target, Data: tok.Data}, nil
}

// handleText accumulates a run of text-bearing tokens (CharData,
// Whitespace, CharRef, EntityRef, CDataSection) starting at first,
// stopping at the first structural token, which is stashed for the
// next advance() call. Per coalesce_characters, accumulation continues
// across kinds; with it off, exactly first's content is emitted.
func (p *Parser) handleText(first lex.Token) (Event, error) {
	pos := first.Pos
	var b strings.Builder
	allWS := true
	sawCData := false
	tok := first
	for {
		switch tok.Kind {
		case lex.KindCharData, lex.KindWhitespace:
			b.WriteString(tok.Text)
			if !tok.AllWhitespace {
				allWS = false
			}
		case lex.KindCharRef:
			b.WriteRune(tok.Rune)
			allWS = false
		case lex.KindEntityRef:
			text, err := p.resolveEntityRef(tok)
			if err != nil {
				return Event{}, err
			}
			b.WriteString(text)
			allWS = false
		case lex.KindCDataSection:
			sawCData = true
			b.WriteString(tok.Data)
			allWS = false
		default:
			p.pending = &tok
			return p.flushText(pos, b.String(), allWS, sawCData)
		}
		if !p.cfg.coalesceCharacters {
			return p.flushText(pos, b.String(), allWS, sawCData)
		}
		next, err := p.nextToken()
		if err != nil {
			return Event{}, err
		}
		if !isTextBearing(next.Kind) {
			p.pending = &next
			return p.flushText(pos, b.String(), allWS, sawCData)
		}
		tok = next
	}
}

func isTextBearing(k lex.Kind) bool {
	switch k {
	case lex.KindCharData, lex.KindWhitespace, lex.KindCharRef, lex.KindEntityRef, lex.KindCDataSection:
		return true
	default:
		return false
	}
}

func (p *Parser) flushText(pos decode.Position, text string, allWS, sawCData bool) (Event, error) {
	if p.cfg.trimWhitespace {
		text = strings.TrimFunc(text, isXMLSpace)
	}
	kind := KindCharacterData
	if sawCData && !p.cfg.cdataToCharacters {
		kind = KindCData
	}
	return Event{Kind: kind, Pos: pos, Text: text, WhitespaceOnly: allWS}, nil
}

func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// resolveEntityRef resolves a named entity reference, expanding
// user-defined entities through the decoder's pushed-substream
// mechanism so depth and length caps apply uniformly, and recursing
// for entities whose expansion itself contains references.
func (p *Parser) resolveEntityRef(tok lex.Token) (string, error) {
	name := tok.Text
	if p.entities.isBuiltin(name) {
		v, _ := p.entities.lookup(name)
		return v, nil
	}
	expansion, ok := p.entities.lookup(name)
	if !ok {
		if p.cfg.replaceUnknownEntityReferences {
			return "�", nil
		}
		return "", newSyntaxError(tok.Pos, ErrUnresolvedEntity)
	}
	depthBefore := p.dec.ExpansionDepth()
	if err := p.dec.PushExpansion(name, expansion, p.cfg.maxEntityExpansionDepth, p.cfg.maxEntityExpansionLength); err != nil {
		return "", p.wrapErr(err)
	}
	var b strings.Builder
	for p.dec.ExpansionDepth() > depthBefore {
		t, err := p.nextToken()
		if err != nil {
			return "", err
		}
		switch t.Kind {
		case lex.KindCharData, lex.KindWhitespace:
			b.WriteString(t.Text)
		case lex.KindCharRef:
			b.WriteRune(t.Rune)
		case lex.KindEntityRef:
			sub, err := p.resolveEntityRef(t)
			if err != nil {
				return "", err
			}
			b.WriteString(sub)
		default:
			return "", newSyntaxError(t.Pos, ErrUnexpectedToken)
		}
	}
	return b.String(), nil
}

// scanDoctypeEntities extracts <!ENTITY name "value"> declarations
// from a DOCTYPE's verbatim internal-subset text; every other markup
// declaration is accepted syntactically by the lexer but ignored
// here.
func (p *Parser) scanDoctypeEntities(text string) {
	const marker = "<!ENTITY"
	for {
		i := strings.Index(text, marker)
		if i < 0 {
			return
		}
		rest := strings.TrimLeft(text[i+len(marker):], " \t\r\n")
		name, rest2 := scanToken(rest)
		if name == "" {
			text = text[i+len(marker):]
			continue
		}
		rest2 = strings.TrimLeft(rest2, " \t\r\n")
		if len(rest2) == 0 || (rest2[0] != '"' && rest2[0] != '\'') {
			text = rest2
			continue
		}
		quote := rest2[0]
		end := strings.IndexByte(rest2[1:], quote)
		if end < 0 {
			return
		}
		value := rest2[1 : 1+end]
		p.entities.define(name, value)
		text = rest2[1+end+1:]
	}
}

func scanToken(s string) (token, rest string) {
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != '\r' && s[i] != '\n' {
		i++
	}
	return s[:i], s[i:]
}

func parseXMLDecl(data string) (version, encoding string, standalone Standalone) {
	version = extractPseudoAttr(data, "version")
	encoding = extractPseudoAttr(data, "encoding")
	switch extractPseudoAttr(data, "standalone") {
	case "yes":
		standalone = StandaloneYes
	case "no":
		standalone = StandaloneNo
	}
	return
}

func extractPseudoAttr(decl, name string) string {
	i := strings.Index(decl, name)
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(decl[i+len(name):], " \t\r\n")
	if !strings.HasPrefix(rest, "=") {
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
